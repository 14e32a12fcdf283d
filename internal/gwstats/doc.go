// Package gwstats holds the gateway's atomic running counters and assembles
// them into the JSON shape served by the admin metrics endpoint.
package gwstats
