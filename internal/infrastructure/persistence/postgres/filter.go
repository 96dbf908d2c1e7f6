package postgres

import (
	"fmt"
	"strings"

	"github.com/prephub/prephub-analytics/internal/domain/submission"
)

// whereClause accumulates AND-ed predicates with positional arguments.
type whereClause struct {
	conds []string
	args  []any
}

// add appends a predicate. cond must contain exactly one %d for the placeholder index.
func (w *whereClause) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

// next returns the placeholder for an argument appended outside the WHERE clause.
func (w *whereClause) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

// String renders " WHERE a AND b" or "" when there are no predicates.
func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// submissionWhere translates a submission filter. Zero fields do not constrain.
func submissionWhere(f submission.Filter) *whereClause {
	w := &whereClause{}
	if f.UserID != "" {
		w.add("user_id = $%d", f.UserID.String())
	}
	if f.Category != "" {
		w.add("category = $%d", string(f.Category))
	}
	if f.Exam != "" {
		w.add("exam = $%d", f.Exam)
	}
	if f.Subject != "" {
		w.add("subject = $%d", f.Subject)
	}
	if f.Chapter != "" {
		w.add("chapter = $%d", f.Chapter)
	}
	if !f.Since.IsZero() {
		w.add("submitted_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		w.add("submitted_at < $%d", f.Until)
	}
	return w
}
