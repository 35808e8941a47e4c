// Command polaris-ctl is the admin client for a running polaris-health
// instance:
//
//	polaris-ctl ping        check the health process over its control socket
//	polaris-ctl stop        ask the health process to shut down
//	polaris-ctl state       dump the generic state from the shared KV store
//	polaris-ctl heartbeat   dump the heartbeat object from the shared KV store
package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jroosing/polaris-gslb/internal/config"
	"github.com/jroosing/polaris-gslb/internal/sharedmem"
)

const controlTimeout = 5 * time.Second

func main() {
	if len(os.Args) != 2 {
		usage()
		os.Exit(2)
	}

	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: polaris-ctl <ping|stop|state|heartbeat>")
}

func run(cmd string) error {
	base, err := config.LoadHealthBase()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	switch cmd {
	case "ping", "stop":
		return controlCommand(base, cmd)
	case "state":
		return dumpKey(base, base.SharedMemGenericStateKey)
	case "heartbeat":
		return dumpKey(base, base.SharedMemHeartbeatKey)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// controlCommand sends one command over the control socket and prints
// the reply.
func controlCommand(base *config.Base, cmd string) error {
	conn, err := net.DialTimeout("unix", base.ControlSocketFile, controlTimeout)
	if err != nil {
		return fmt.Errorf("unable to connect to the control socket %s: %w",
			base.ControlSocketFile, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(controlTimeout))

	if _, err := conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("failed to send %q: %w", cmd, err)
	}

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("no reply to %q: %w", cmd, err)
	}

	fmt.Println(string(buf[:n]))
	return nil
}

// dumpKey pretty-prints a JSON value from the shared KV store.
func dumpKey(base *config.Base, key string) error {
	store := sharedmem.New(sharedmem.Options{
		Hostname:      base.SharedMemHostname,
		SocketTimeout: time.Duration(base.SharedMemSocketTimeout * float64(time.Second)),
	})

	var value any
	if err := store.GetJSON(key, &value); err != nil {
		return err
	}

	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
