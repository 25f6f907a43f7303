package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"pricewatch/models"

	"github.com/robfig/cron/v3"
)

// ScanScheduler runs periodic scan passes. Each pass gets a run-scoped
// context so an in-flight scan can be aborted cleanly on shutdown.
type ScanScheduler struct {
	cron    *cron.Cron
	scanner *Scanner
	specs   []models.ProductSpec

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewScanScheduler creates a scheduler that scans every intervalHours.
func NewScanScheduler(scanner *Scanner, specs []models.ProductSpec, intervalHours int) (*ScanScheduler, error) {
	if intervalHours <= 0 {
		intervalHours = 12
	}

	s := &ScanScheduler{
		cron:    cron.New(),
		scanner: scanner,
		specs:   specs,
	}

	spec := fmt.Sprintf("0 */%d * * *", intervalHours)
	if _, err := s.cron.AddFunc(spec, s.runScan); err != nil {
		return nil, fmt.Errorf("failed to schedule scanner: %v", err)
	}

	return s, nil
}

// Start begins scheduled scanning and kicks off an immediate pass.
func (s *ScanScheduler) Start() {
	go s.runScan()
	s.cron.Start()
	log.Println("Price scanner scheduled")
}

// Stop cancels any in-flight scan and stops the cron loop.
func (s *ScanScheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
	}
}

// ManualScan triggers an immediate pass in the background.
func (s *ScanScheduler) ManualScan() {
	log.Println("Manual scan triggered")
	go s.runScan()
}

func (s *ScanScheduler) runScan() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("Scan already in progress, skipping")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	if _, err := s.scanner.Run(ctx, s.specs); err != nil {
		log.Printf("Scan run failed: %v", err)
	}
}
