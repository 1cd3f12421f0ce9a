package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"

	"strobelink/host/config"
	"strobelink/host/controller"
)

var (
	configPath = flag.String("config", "", "JSON configuration file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config, ignored for USB CDC)")
	timeout    = flag.Duration("timeout", 0, "Reply timeout (overrides config)")
	verbose    = flag.Bool("verbose", false, "Print unsolicited controller output")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *timeout != 0 {
		cfg.ReplyTimeoutMS = int(timeout.Milliseconds())
	}

	client, err := controller.Dial(cfg.SerialPort(), cfg.ReplyTimeout())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	if *verbose {
		client.OnLine = func(line string) { fmt.Printf("< %s\n", line) }
	}

	// One-shot mode: strobectl frequency 10
	if flag.NArg() > 0 {
		if err := run(client, flag.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitCode(err))
		}
		return
	}

	fmt.Printf("Connected to %s. Type 'help' for commands, 'quit' to exit.\n", cfg.Serial.Device)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "quit", "exit", "q":
			return
		default:
			if err := run(client, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// run executes one command line.
func run(client *controller.Client, args []string) error {
	ctx := context.Background()

	switch args[0] {
	case "help", "?":
		printHelp()
		return nil

	case "status":
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("firmware        V%d\n", st.FirmwareVersion)
		fmt.Printf("image period    %d us (%.2f Hz)\n", st.FullCycleLenUS, st.CameraFrequency())
		fmt.Printf("light pulse     %d us (%.1f Hz)\n", st.LightsPulseLenUS, st.StrobeFrequency())
		fmt.Printf("duty            %d us\n", st.DutyLenUS)
		fmt.Printf("power           %s\n", onOff(st.PowerOn))
		fmt.Printf("auto            %s\n", onOff(st.AutoMode))
		fmt.Printf("camera works    %s\n", onOff(st.CameraWorks))
		fmt.Printf("error LED       %s\n", onOff(st.ErrorLED))
		fmt.Printf("fan             %s\n", onOff(st.FanOn))
		fmt.Printf("propagation     %d\n", st.Propagation)
		fmt.Printf("external        %s\n", onOff(st.ExternalTrigger))
		return nil

	case "info":
		lines, err := client.Help(ctx, 200*time.Millisecond)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil

	case "raw":
		// raw f10 sends the letter with its argument
		if len(args) != 2 || args[1] == "" {
			return fmt.Errorf("usage: raw <letter>[<number>]")
		}
		s := args[1]
		if err := client.Do(ctx, s[0], s[1:]); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil
	}

	cmd, ok := controller.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown command %q (type 'help' for available commands)", args[0])
	}

	var value uint32
	switch cmd.Kind {
	case controller.ArgSwitch:
		if len(args) != 2 {
			return fmt.Errorf("usage: %s on|off", cmd.Name)
		}
		on, err := controller.ParseSwitch(args[1])
		if err != nil {
			return err
		}
		if on {
			value = 1
		}
	case controller.ArgNumber:
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <number>", cmd.Name)
		}
		n, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("bad number %q", args[1])
		}
		value = uint32(n)
	}

	if err := client.Execute(ctx, cmd.Name, value); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  status             - Show the controller status")
	fmt.Println("  info               - Print the controller's help screen")
	fmt.Println("  raw <cmd>          - Send a console command, e.g. raw f10")
	for _, cmd := range controller.Commands() {
		usage := cmd.Name
		switch cmd.Kind {
		case controller.ArgSwitch:
			usage += " on|off"
		case controller.ArgNumber:
			usage += " <n>"
		}
		fmt.Printf("  %-18s - %s\n", usage, cmd.Help)
	}
	fmt.Println("  quit/exit/q        - Exit the program")
	fmt.Println()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// exitCode returns the controller error code, so scripts can tell E1 from E7.
func exitCode(err error) int {
	var ce *controller.Error
	if errors.As(err, &ce) && ce.Code != 0 {
		return int(ce.Code)
	}
	return 1
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [command [arg]]\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), "\nWithout a command an interactive prompt starts.")
	}
}
