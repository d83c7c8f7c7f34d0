package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"strings"

	"insider-risk/internal/dataset"

	"github.com/brianvoe/gofakeit/v7"
)

func main() {
	out := flag.String("out", "data/behavioral_records.csv", "output CSV path, - for stdout")
	count := flag.Int("count", 500, "number of entities")
	seed := flag.Uint64("seed", 123, "random seed")
	departments := flag.String("departments", strings.Join(dataset.DefaultDepartments, ","), "comma separated department names")
	suspicious := flag.Float64("suspicious-rate", 0.08, "share of Suspicious entities")
	critical := flag.Float64("critical-rate", 0.04, "share of Critical entities")
	flag.Parse()

	if *count <= 0 {
		log.Fatal("count must be positive")
	}

	faker := gofakeit.New(*seed)
	records := dataset.Synthesize(faker, dataset.SynthOptions{
		Count:          *count,
		Departments:    strings.Split(*departments, ","),
		SuspiciousRate: *suspicious,
		CriticalRate:   *critical,
	})

	w := os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Error creating %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	buf := bufio.NewWriter(w)
	if err := dataset.WriteCSV(buf, records); err != nil {
		log.Fatalf("Error writing records: %v", err)
	}
	if err := buf.Flush(); err != nil {
		log.Fatalf("Error flushing output: %v", err)
	}

	log.Printf("Wrote %d records to %s", len(records), *out)
}
