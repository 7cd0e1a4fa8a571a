package filedrop

import (
	"fmt"
	"os"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/baruhq/filedrop/pkg/transfer"
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdListPeers
	cmdSendFile
	cmdUnknown
)

type command struct {
	kind commandKind
	peer peer.ID
	path string
}

// parseCommand interprets one line of user input. The file path is the
// remainder of the line, so paths may contain spaces.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}, nil
	}

	tokens := strings.SplitN(line, " ", 3)
	switch tokens[0] {
	case "ls":
		return command{kind: cmdListPeers}, nil
	case "file":
		if len(tokens) < 3 {
			return command{}, fmt.Errorf("usage: file <peer_id> <file_path>")
		}
		p, err := peer.Decode(tokens[1])
		if err != nil {
			return command{}, fmt.Errorf("invalid peer id %q: %w", tokens[1], err)
		}
		path := strings.TrimSpace(tokens[2])
		if path == "" {
			return command{}, fmt.Errorf("usage: file <peer_id> <file_path>")
		}
		return command{kind: cmdSendFile, peer: p, path: path}, nil
	default:
		return command{kind: cmdUnknown}, nil
	}
}

// handleCommand runs on the main loop. Sending spawns a session goroutine
// that owns only its file handle and talks back exclusively through the
// chunk channel; its errors surface on stderr, never into the loop.
func (n *Node) handleCommand(line string) {
	cmd, err := parseCommand(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	switch cmd.kind {
	case cmdNone:
	case cmdListPeers:
		for _, p := range n.registry.List() {
			fmt.Printf("peer: %s\n", p)
		}
	case cmdSendFile:
		sess := &transfer.Session{Peer: cmd.peer, Path: cmd.path, Progress: true}
		go func() {
			if err := sess.Run(n.chunkCh); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}()
	case cmdUnknown:
		fmt.Fprintln(os.Stderr, "Wrong command, available commands are: ls, file <PeerId> <File Path>")
	}
}
