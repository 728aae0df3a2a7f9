package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/challenge75/internal/kafka"
)

// readGrades parses one JSON grade per line, skipping blank lines and # comments
func readGrades(r io.Reader) ([]kafka.GradeMessage, error) {
	var grades []kafka.GradeMessage
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var g kafka.GradeMessage
		if err := json.Unmarshal([]byte(text), &g); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(g.SubmissionID) == "" {
			return nil, fmt.Errorf("line %d: submission_id is required", line)
		}
		grades = append(grades, g)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return grades, nil
}

func loadGrades(file, submission string, dsa, xpost, contest int, gradedBy string) ([]kafka.GradeMessage, error) {
	if submission != "" {
		return []kafka.GradeMessage{{
			SubmissionID: submission,
			DSAScore:     dsa,
			XPostScore:   xpost,
			ContestScore: contest,
			GradedBy:     gradedBy,
		}}, nil
	}
	if file == "" {
		return nil, errors.New("either -file or -submission is required")
	}

	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	grades, err := readGrades(r)
	if err != nil {
		return nil, err
	}
	for i := range grades {
		if grades[i].GradedBy == "" {
			grades[i].GradedBy = gradedBy
		}
	}
	return grades, nil
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "challenge-grades", "Kafka topic")
	file := flag.String("file", "", "File of JSON grades, one per line (- for stdin)")
	submission := flag.String("submission", "", "Grade a single submission ID")
	dsa := flag.Int("dsa", 0, "DSA score for -submission")
	xpost := flag.Int("xpost", 0, "X post score for -submission")
	contest := flag.Int("contest", 0, "Contest score for -submission")
	gradedBy := flag.String("graded-by", "", "Grader recorded on each message")
	flag.Parse()

	grades, err := loadGrades(*file, *submission, *dsa, *xpost, *contest, *gradedBy)
	if err != nil {
		log.Fatalf("Failed to load grades: %v", err)
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Printf("Brokers: %s\n", *brokers)
	fmt.Printf("Topic:   %s\n", *topic)
	fmt.Printf("Grades:  %d\n\n", len(grades))

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

send:
	for i, g := range grades {
		data, err := json.Marshal(g)
		if err != nil {
			log.Printf("Failed to marshal grade %d: %v", i+1, err)
			continue
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(g.SubmissionID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-sigChan:
			fmt.Println("\nInterrupted, flushing queued grades...")
			break send
		}
	}

	producer.AsyncClose()
	wg.Wait()
	fmt.Printf("Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))

	if atomic.LoadInt64(&errorCount) > 0 {
		os.Exit(1)
	}
}
