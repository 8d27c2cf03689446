// Command pantry runs the pantry inventory server and manages the inventory
// from the command line.
//
// Item and recipe commands open the same SQLite database the server uses, so
// they work whether or not a server is running; a running server picks the
// changes up and pushes them to its stream subscribers.
package main
