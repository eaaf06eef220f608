// Command classify runs the relay's classifier over a saved batch of channel
// messages and prints what the relay would send, without touching the feed or
// the notification socket.
//
// Usage:
//
//	go run ./cmd/classify -in batch.json
//	cat batch.json | go run ./cmd/classify -watermark 100
//
// The input is a JSON array of {"id": N, "text": "..."} objects.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/couchcryptid/siren-relay/internal/domain"
)

func main() {
	in := flag.String("in", "", "path to a JSON message batch (default stdin)")
	watermark := flag.Int64("watermark", 0, "ignore messages with an id at or below this value")
	flag.Parse()

	var r io.Reader = os.Stdin
	if *in != "" {
		f, err := os.Open(*in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	if code := run(r, os.Stdout, os.Stderr, *watermark); code != 0 {
		os.Exit(code)
	}
}

func run(r io.Reader, w, errw io.Writer, watermark int64) int {
	var all []domain.Message
	if err := json.NewDecoder(r).Decode(&all); err != nil {
		fmt.Fprintf(errw, "decode messages: %v\n", err)
		return 1
	}

	batch := make([]domain.Message, 0, len(all))
	for _, m := range all {
		if m.ID > watermark {
			batch = append(batch, m)
		}
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })

	if len(batch) == 0 {
		fmt.Fprintf(w, "no messages above watermark %d\n", watermark)
		return 0
	}

	c := domain.Classify(batch)
	newWatermark := max(watermark, domain.MaxID(batch))

	fmt.Fprintf(w, "messages:  %d\n", len(batch))
	fmt.Fprintf(w, "alarm:     %t\n", c.Alarm)
	fmt.Fprintf(w, "retreat:   %t\n", c.Retreat)
	fmt.Fprintf(w, "category:  %s\n", c.Category)
	fmt.Fprintf(w, "watermark: %d\n", newWatermark)

	kind, ok := c.Kind()
	if !ok {
		fmt.Fprintln(w, "payload:   none")
		return 0
	}
	fmt.Fprintf(w, "template:  %s\n", kind)
	fmt.Fprintf(w, "payload:   %s\n", domain.Render(kind, c.Category))
	return 0
}
