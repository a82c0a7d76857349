// BSD 3-Clause License
//
// Copyright (c) 2024, Highlander Authors
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this
//    list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice,
//    this list of conditions and the following disclaimer in the documentation
//    and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
//    contributors may be used to endorse or promote products derived from
//    this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package main

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/tildenet/highlander"
	"github.com/tildenet/highlander/agent"
	"github.com/tildenet/highlander/store"
)

// peerBook is the on-disk shape written by genkeys and read by run: one
// founding peer per entry, keyed by its listen address.
type peerBook struct {
	Peers []peerBookEntry `json:"peers"`
}

type peerBookEntry struct {
	Addr       string `json:"addr"`
	PrivateKey string `json:"private_key,omitempty"` // hex-encoded D, omitted on peers shared with others
	PublicKey  string `json:"public_key"`             // hex of the compressed secp256k1 identity
}

func main() {
	app := &cli.App{
		Name:                 "highlandernode",
		Usage:                "run or provision a Highlander consensus node",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			genkeysCommand,
			runCommand,
			showtipCommand,
			peersCommand,
		},
		Action: func(c *cli.Context) error {
			cli.ShowAppHelp(c)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var genkeysCommand = &cli.Command{
	Name:  "genkeys",
	Usage: "generate a founding peer set and write its peer-book JSON",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "count", Value: 4, Usage: "number of founding peers to generate"},
		&cli.IntFlag{Name: "base-port", Value: 4680, Usage: "first listen port; subsequent peers increment by one"},
		&cli.StringFlag{Name: "out", Value: "./peerbook.json", Usage: "output peer-book file, shared by every founding peer"},
	},
	Action: func(c *cli.Context) error {
		count := c.Int("count")
		basePort := c.Int("base-port")

		book := &peerBook{}
		for i := 0; i < count; i++ {
			priv, err := highlander.GenerateKey()
			if err != nil {
				return err
			}
			id := highlander.IdentityFromPublicKey(&priv.PublicKey)
			book.Peers = append(book.Peers, peerBookEntry{
				Addr:       fmt.Sprintf("127.0.0.1:%d", basePort+i),
				PrivateKey: hex.EncodeToString(priv.D.Bytes()),
				PublicKey:  hex.EncodeToString(id[:]),
			})
		}

		file, err := os.Create(c.String("out"))
		if err != nil {
			return err
		}
		defer file.Close()
		enc := json.NewEncoder(file)
		enc.SetIndent("", "\t")
		if err := enc.Encode(book); err != nil {
			return err
		}

		log.Printf("generated %d founding peers into %s", count, c.String("out"))
		return nil
	},
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "start a consensus node",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "peerbook", Value: "./peerbook.json", Usage: "the shared founding peer-book file"},
		&cli.IntFlag{Name: "id", Value: 0, Usage: "this node's index into the peer-book"},
		&cli.StringFlag{Name: "folder", Value: "./data", Usage: "block store directory"},
		&cli.DurationFlag{Name: "keepalive", Value: 30 * time.Second},
		&cli.DurationFlag{Name: "gather-time", Value: 2 * time.Second},
		&cli.BoolFlag{Name: "thin", Usage: "retain only the tail of other peers' blocks"},
		&cli.Uint64Flag{Name: "thin-retention", Value: 256},
		&cli.StringFlag{Name: "proxy", Usage: "Socks5 proxy for outbound dials, e.g. 127.0.0.1:9050"},
		&cli.BoolFlag{Name: "force-restart", Usage: "wipe local chain on startup"},
	},
	Action: func(c *cli.Context) error {
		book, err := loadPeerBook(c.String("peerbook"))
		if err != nil {
			return err
		}

		id := c.Int("id")
		if id < 0 || id >= len(book.Peers) {
			return fmt.Errorf("id %d out of range for peer-book of %d entries", id, len(book.Peers))
		}

		self := book.Peers[id]
		priv, err := decodePrivateKey(self.PrivateKey)
		if err != nil {
			return err
		}

		var founders []highlander.FoundingPeer
		for _, p := range book.Peers {
			pub, err := hex.DecodeString(p.PublicKey)
			if err != nil {
				return err
			}
			var fid highlander.PeerIdentity
			copy(fid[:], pub)
			founders = append(founders, highlander.FoundingPeer{Identity: fid, Addr: p.Addr})
		}

		cfg := highlander.Config{
			Addr:           self.Addr,
			Folder:         c.String("folder"),
			PrivateKey:     priv,
			KeepAlive:      c.Duration("keepalive"),
			DataGatherTime: c.Duration("gather-time"),
			Thin:           c.Bool("thin"),
			ThinRetention:  c.Uint64("thin-retention"),
			Proxy:          c.String("proxy"),
			ForceRestart:   c.Bool("force-restart"),
			FoundingPeers:  founders,
		}

		p, err := agent.New(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		log.Printf("listening on %s, identity %x", self.Addr, highlander.IdentityFromPublicKey(&priv.PublicKey))

		for k, peer := range book.Peers {
			if k == id {
				continue
			}
			go dialUntilConnected(p, peer.Addr)
		}

		blocks := p.LastBlockReceiver()
		for block := range blocks {
			hash := block.Hash()
			log.Printf("<commit> height=%d author=%x hash=%x data=%d", block.Height, block.Author[:4], hash[:8], len(block.Data))
		}
		return nil
	},
}

var showtipCommand = &cli.Command{
	Name:  "showtip",
	Usage: "print the chain tip of a (stopped) node's block store",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "folder", Value: "./data", Usage: "block store directory"},
	},
	Action: func(c *cli.Context) error {
		bs, err := store.Open(c.String("folder"), store.Options{})
		if err != nil {
			return err
		}
		defer bs.Close()

		tip, hasTip := bs.Tip()
		height, _ := bs.Height()

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"height", "tip hash", "store size"})

		size, err := dirSize(c.String("folder"))
		sizeStr := "unknown"
		if err == nil {
			sizeStr = bytefmt.ByteSize(uint64(size))
		}

		tipStr := "(none)"
		if hasTip {
			tipStr = hex.EncodeToString(tip[:])
		}
		table.Append([]string{fmt.Sprint(height), tipStr, sizeStr})
		table.Render()
		return nil
	},
}

var peersCommand = &cli.Command{
	Name:  "peers",
	Usage: "print a peer-book file as a table",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "peerbook", Value: "./peerbook.json", Usage: "the peer-book file to print"},
	},
	Action: func(c *cli.Context) error {
		book, err := loadPeerBook(c.String("peerbook"))
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"id", "addr", "identity"})
		for i, p := range book.Peers {
			table.Append([]string{fmt.Sprint(i), p.Addr, p.PublicKey})
		}
		table.Render()
		return nil
	},
}

func loadPeerBook(path string) (*peerBook, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	book := &peerBook{}
	if err := json.NewDecoder(file).Decode(book); err != nil {
		return nil, err
	}
	return book, nil
}

func decodePrivateKey(hexD string) (*ecdsa.PrivateKey, error) {
	d, err := hex.DecodeString(hexD)
	if err != nil {
		return nil, err
	}
	return highlander.PrivateKeyFromBytes(d)
}

// dialUntilConnected retries Connect against addr until it succeeds or the
// node shuts down, mirroring the teacher's background peer-dial loop
// (cmd/bdlsnode/main.go) now delegated to agent.Peer.Connect's own
// handshake instead of a raw net.Dial handoff.
func dialUntilConnected(p *agent.Peer, addr string) {
	for {
		if err := p.Connect(addr); err == nil || err == highlander.ErrClosed {
			return
		}
		time.Sleep(time.Second)
	}
}

func dirSize(path string) (int64, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
