package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-midibridge/debug"
	"go-midibridge/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	arg := ""
	if len(os.Args) > 2 {
		arg = strings.Join(os.Args[2:], " ")
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "listen":
		listen(arg)
	case "send":
		sendTest(arg)
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI port diagnostics")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list           - List all MIDI ports")
	fmt.Println("  listen [match] - Open matching inputs and print decoded messages")
	fmt.Println("  send <port>    - Play a C major arpeggio on an output port")
	fmt.Println("  poll           - Poll for device changes")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := gomidi.GetInPorts()
		outs := gomidi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

// printer prints every decoded event with its arrival offset
type printer struct {
	start time.Time
}

func (p printer) Queue(ev midi.RawEvent) {
	fmt.Printf("%10.3fms  %-9s %s  % X\n",
		float64(ev.Arrival.Sub(p.start).Microseconds())/1000, ev.Source, ev.Message, ev.Bytes())
}

func listen(match string) {
	log, closer, err := debug.New(debug.Config{Level: "info", Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if match == "" {
		fmt.Println("Listening on all inputs. Ctrl+C to exit.")
	} else {
		fmt.Printf("Listening on inputs matching %q. Ctrl+C to exit.\n", match)
	}

	dm := midi.NewDeviceManager(printer{start: time.Now()}, match, time.Second, log)
	go func() {
		for ev := range dm.Events() {
			fmt.Printf("-- %s %s (%d open)\n", ev.ID, ev.Type, ev.Open)
		}
	}()
	dm.Run(ctx)
}

func sendTest(port string) {
	if port == "" {
		fmt.Println("send needs an output port name, see: miditest list")
		return
	}
	thru, err := midi.OpenThru(port, zerolog.Nop())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Using output: %s\n", thru.Name())

	for _, note := range []int{60, 64, 67, 72} {
		thru.HandleEvent(midi.SampleEvent{Source: midi.SourceSynthetic, Message: midi.EncodeNoteOn(0, note, 100)}, 0)
		time.Sleep(150 * time.Millisecond)
		thru.HandleEvent(midi.SampleEvent{Source: midi.SourceSynthetic, Message: midi.EncodeNoteOff(0, note)}, 0)
	}

	thru.Close()
	sent, failed := thru.Counts()
	fmt.Printf("Done! sent %d, failed %d, dropped %d\n", sent, failed, thru.Dropped())
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a device to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ins := gomidi.GetInPorts()
		outs := gomidi.GetOutPorts()

		var inNames, outNames []string
		for _, p := range ins {
			inNames = append(inNames, p.String())
		}
		for _, p := range outs {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
