/*
Package dbtest spins up databases for the engine test-suites of chronos.

Neo4j runs in a Docker container managed by testcontainers-go, which makes
those tests long-running; they are skipped in short mode:

	go test -short ./...

SQLite runs in-process on a file in a temporary directory that is removed
when the test completes.

Developing locally with Docker, you may want to manually inspect the graph
after a test failure. To do this, set the Inspect flag to true:

	go test ./neo4jengine -dbtest.inspect

This package is intended to be used in tests only.
*/
package dbtest
