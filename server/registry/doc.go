// Package registry loads the board configuration file (spec §4.8) and
// answers the two questions the dispatcher needs before touching
// hardware: which boards can a given user see, and what driver
// parameters does a given board name resolve to.
package registry
