// Command uevtest opens a Monitor on a named netlink group, installs
// subsystem/devtype/tag filters from repeated flags, and prints every
// device it receives until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/friedelschoen/go-uevent"
	"github.com/friedelschoen/go-uevent/pkg/device"
	"github.com/friedelschoen/go-uevent/pkg/seq"
)

// stringListFlag accumulates repeated occurrences of a flag into a slice.
type stringListFlag []string

func (f *stringListFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ",")
}

func (f *stringListFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func main() {
	group := flag.String("group", "udev", `netlink group to monitor: "kernel", "udev", or "" for unicast-only`)
	rcvbuf := flag.Int("rcvbuf", 0, "force the kernel receive buffer to this size in bytes (requires privilege)")
	var subsystems stringListFlag
	flag.Var(&subsystems, "subsystem", `subsystem[:devtype] to match, repeatable (e.g. "block" or "net:wlan")`)
	var tags stringListFlag
	flag.Var(&tags, "tag", "tag to match, repeatable")
	flag.Parse()

	mon, err := uevent.NewFromNetlink(*group)
	if err != nil {
		log.Fatalf("uevtest: open monitor: %v", err)
	}
	defer mon.Close()

	for _, s := range subsystems {
		subsystem, devtype, hasDevtype := strings.Cut(s, ":")
		if hasDevtype {
			err = mon.FilterAddMatchSubsystemDevtype(subsystem, devtype)
		} else {
			err = mon.FilterAddMatchSubsystem(subsystem)
		}
		if err != nil {
			log.Fatalf("uevtest: add subsystem filter %q: %v", s, err)
		}
	}
	for _, tag := range tags {
		if err := mon.FilterAddMatchTag(tag); err != nil {
			log.Fatalf("uevtest: add tag filter %q: %v", tag, err)
		}
	}

	if *rcvbuf > 0 {
		if err := mon.SetReceiveBufferSize(*rcvbuf); err != nil {
			log.Printf("uevtest: set receive buffer size: %v", err)
		}
	}

	if err := mon.EnableReceiving(); err != nil {
		log.Fatalf("uevtest: enable receiving: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ch := make(chan *device.Device, 16)
	poller := uevent.NewPoller[*device.Device](mon)
	poller.Stream(ch)

	fmt.Printf("uevtest: listening on group %q\n", *group)
	for i, d := range seq.Enumerate(channelSeq(ctx, ch)) {
		printDevice(i, d)
	}
}

// channelSeq adapts a channel into an iter.Seq, stopping when ctx is done.
func channelSeq(ctx context.Context, ch <-chan *device.Device) func(yield func(*device.Device) bool) {
	return func(yield func(*device.Device) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-ch:
				if !ok || !yield(d) {
					return
				}
			}
		}
	}
}

func printDevice(i int, d *device.Device) {
	fmt.Printf("[%d] %s %-8s %s\n", i, time.Now().Format(time.RFC3339), d.Action(), d.Devpath())
	for key, value := range d.Properties() {
		fmt.Printf("    %s=%s\n", key, value)
	}
	for tag := range d.Tags() {
		fmt.Printf("    TAG=%s\n", tag)
	}
}
