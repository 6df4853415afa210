// Command crmflow is the CLI and daemon entry point for the CRM workflow
// engine. The daemon subcommand hosts the engine; every other subcommand
// talks to it over the IPC socket.
package main
