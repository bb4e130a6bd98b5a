// flightbus-inspect decodes captured software bus messages.
//
// Each argument is one message as a hex string. Without arguments, one
// message is read per line from standard input. Spaces, colons and a 0x
// prefix are ignored.
//
// Usage:
//
//	flightbus-inspect [--json] [hex ...]
//
// Example:
//
//	flightbus-inspect 1923DABC0019
//	tcpdump-export | flightbus-inspect --json
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var jsonOutput bool

	flagSet := pflag.NewFlagSet("flightbus-inspect", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.BoolVar(&jsonOutput, "json", false, "print one JSON object per message")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	inputs := flagSet.Args()
	if len(inputs) == 0 {
		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				inputs = append(inputs, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	enc := json.NewEncoder(stdout)
	failed := 0
	for _, input := range inputs {
		r, err := decode(input)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", input, err)
			failed++
			continue
		}
		if jsonOutput {
			if err := enc.Encode(r); err != nil {
				return err
			}
			continue
		}
		r.print(stdout)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d messages could not be decoded", failed, len(inputs))
	}
	return nil
}
