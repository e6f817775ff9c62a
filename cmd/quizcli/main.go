// Command quizcli runs a test from a local workbook in the terminal, without
// the server. Useful for checking an answer key before importing it.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/source"
	"golang.org/x/term"
)

func main() {
	var (
		path     string
		sheet    string
		count    int
		minutes  int
		shuffle  bool
		finalKey bool
	)
	flag.StringVar(&path, "file", "", "Path to the .xlsx question bank")
	flag.StringVar(&sheet, "sheet", "", "Worksheet to use (default: first sheet)")
	flag.IntVar(&count, "count", 0, "Number of questions (0 = all)")
	flag.IntVar(&minutes, "minutes", 0, "Time limit in minutes (0 = untimed)")
	flag.BoolVar(&shuffle, "shuffle", false, "Draw questions at random")
	flag.BoolVar(&finalKey, "final-key", false, "Prefer the final answer key")
	flag.Parse()

	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	book, err := source.ReadWorkbook(f, sheet)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	d := newDriver(os.Stdout, os.Stdin)
	questions := book.Questions
	cfg := quiz.Config{
		ExamName:        book.Name,
		Count:           count,
		DurationMinutes: minutes,
		UseFinalKey:     finalKey,
		Shuffle:         shuffle,
	}

	for {
		sess, err := quiz.Start(questions, cfg, time.Now(), nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		res, ok := d.run(sess)
		if !ok {
			return
		}
		d.printResult(res)

		next, ok := d.askRetest(res)
		if !ok {
			return
		}
		origin := res.ID
		questions, cfg.Count, cfg.OriginOf = next, 0, &origin
	}
}

// width is the terminal width used for wrapping, or 80 when stdout is not a tty.
func width() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w < 40 {
		return 80
	}
	return w
}

func wrap(s string, w int) string {
	var b strings.Builder
	line := 0
	for _, word := range strings.Fields(s) {
		if line > 0 && line+1+len(word) > w {
			b.WriteByte('\n')
			line = 0
		} else if line > 0 {
			b.WriteByte(' ')
			line++
		}
		b.WriteString(word)
		line += len(word)
	}
	return b.String()
}
