// Command enqueue pushes one patient onto the introduction queue. It exists
// for operators re-running individual patients outside the main pipeline.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/soda92/phis-introducing-med/internal/config"
	"github.com/soda92/phis-introducing-med/internal/introduce"
)

func main() {
	patientID := flag.String("id", "", "patient ID number")
	name := flag.String("name", "", "patient name (optional)")
	diseases := flag.String("diseases", "", "diagnosis text, e.g. 高血压糖尿病")
	flag.Parse()

	if *patientID == "" {
		log.Fatal("-id is required")
	}

	_ = godotenv.Load()
	cfg := appconfig.Load()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = client.Close() }()

	queue := introduce.NewRedisQueue(client, cfg.PatientQueueKey)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	task := introduce.Task{Patient: introduce.Patient{
		ID:       *patientID,
		Name:     *name,
		Diseases: *diseases,
	}}
	if err := queue.Enqueue(ctx, task); err != nil {
		log.Fatalf("enqueue: %v", err)
	}
	log.Printf("patient %s queued on %s", *patientID, cfg.PatientQueueKey)
}
