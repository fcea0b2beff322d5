// Command toolbridge is the remote-tool execution bridge: it relays
// whitelisted commands to a remote host over SSH and reports their output
// as a sequence of JSON events, either one-shot or through one of three
// long-running servers.
package main

func main() {
	Execute()
}
