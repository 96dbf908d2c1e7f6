package postgres

// Repositories bundles every repository over one connection pool.
type Repositories struct {
	Users       *UserRepository
	Submissions *SubmissionRepository
	Stats       *StatsRepository
	Activity    *ActivityRepository
	Leaderboard *LeaderboardStore
}

// NewRepositories creates all repositories over conn.
func NewRepositories(conn *Connection) Repositories {
	return Repositories{
		Users:       NewUserRepository(conn),
		Submissions: NewSubmissionRepository(conn),
		Stats:       NewStatsRepository(conn),
		Activity:    NewActivityRepository(conn),
		Leaderboard: NewLeaderboardStore(conn),
	}
}
