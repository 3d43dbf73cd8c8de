/*
Package health provides the liveness checks behind the daemon's readiness
endpoint.

The fleet controller depends on two kinds of external services: SQL
databases (the live database, possibly a remote MySQL primary) and plain
TCP endpoints (the MQTT battery bridge). Each gets a small Checker:

	┌──────────────────────────────────────────┐
	│             Checker Interface            │
	│  • Check(ctx) Result                     │
	│  • Type() CheckType                      │
	└────────┬─────────────────────────────────┘
	         │
	    ┌────┴──────┐
	    ▼           ▼
	┌────────┐  ┌────────┐
	│  SQL   │  │  TCP   │
	│Checker │  │Checker │
	└────────┘  └────────┘
	     │          │
	     ▼          ▼
	  Ping()     Connect
	             to :port

Evaluate runs a named set of checks and reports the aggregate, which the
HTTP /readyz handler renders as JSON. Failing checks flip the response to
503 so the site supervisor can hold traffic until the databases are back.

# Usage

	checks := map[string]health.Checker{
		"livestore": health.NewSQLChecker("livestore", store),
		"mqtt":      health.NewTCPChecker("192.168.185.25:1883"),
	}
	ok, results := health.Evaluate(ctx, checks)

Checks are point-in-time: there is no retry counter or grace period. The
caller probes as often as it likes and decides what a failure means.
*/
package health
