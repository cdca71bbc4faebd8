package main

import "flag"

// newFlagSet builds the dacnode CLI's flag set. Only a config file path
// and a version switch are exposed: every other setting belongs in the
// config file per spec.md §6, not the command line.
func newFlagSet() (fs *flag.FlagSet, configPath *string, showVersion *bool) {
	fs = flag.NewFlagSet("dacnode", flag.ContinueOnError)
	configPath = fs.String("config", "./dacnode.conf", "path to the node's config file")
	showVersion = fs.Bool("version", false, "print version and exit")
	return fs, configPath, showVersion
}
