package config

// Version is the program version.
var Version = "v0.1.0"
