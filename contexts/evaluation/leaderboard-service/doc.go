// Package leaderboardservice admits team submissions against a per test set
// quota and ranks scored submissions into the public leaderboard and each
// team's own view.
//
// Domain and application logic stay behind ports; adapters for memory,
// Postgres, Redis and HTTP are composed in module.go and in bootstrap.
package leaderboardservice
