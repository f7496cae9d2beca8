// Merges Go coverage profiles from several test runs into one profile
// on stdout. Blocks that appear in more than one input have their hit
// counts summed, so a line covered by any run counts as covered.
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s file1.out file2.out [...]\n", os.Args[0])
		os.Exit(1)
	}

	mode := ""
	counts := make(map[string]int64)
	var order []string

	for _, filename := range os.Args[1:] {
		if err := mergeFile(filename, &mode, counts, &order); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", filename, err)
			os.Exit(1)
		}
	}
	if mode == "" {
		fmt.Fprintln(os.Stderr, "Error: no mode line found in any input")
		os.Exit(1)
	}

	// Block order is irrelevant to go tool cover; sorting keeps the
	// output reproducible across runs.
	sort.Strings(order)

	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()

	fmt.Fprintln(out, "mode: "+mode)
	for _, block := range order {
		fmt.Fprintf(out, "%s %d\n", block, counts[block])
	}
}

// mergeFile folds one profile into counts. The first mode line seen
// wins; later files must agree.
func mergeFile(filename string, mode *string, counts map[string]int64, order *[]string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "mode:") {
			m := strings.TrimSpace(strings.TrimPrefix(line, "mode:"))
			if *mode == "" {
				*mode = m
			} else if m != *mode {
				return fmt.Errorf("mode %q conflicts with %q", m, *mode)
			}
			continue
		}

		// Profile lines look like "file.go:1.2,3.4 5 67": the block key,
		// the statement count, then the hit count.
		lastSpace := strings.LastIndexByte(line, ' ')
		if lastSpace < 0 {
			return fmt.Errorf("malformed profile line: %q", line)
		}
		block := line[:lastSpace]
		hits, err := strconv.ParseInt(line[lastSpace+1:], 10, 64)
		if err != nil {
			return fmt.Errorf("malformed hit count in %q: %w", line, err)
		}

		if _, seen := counts[block]; !seen {
			*order = append(*order, block)
		}
		counts[block] += hits
	}
	return scanner.Err()
}
