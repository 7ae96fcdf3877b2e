// Package nldriver implements the link, route and topology driver
// capabilities on top of netlink, with ethtool as the fallback query path
// for operational state. Non-Linux builds get stubs that fail at runtime so
// the rest of the tree still compiles for tests.
package nldriver
