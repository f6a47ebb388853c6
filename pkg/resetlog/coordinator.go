// Package resetlog audits reset actions: every cache clear and graph
// risk wipe is recorded with its actor and outcome, so operators can
// reconstruct why risk state disappeared.
package resetlog

import (
	"fmt"
	"sync"
	"time"
)

// Coordinator executes and audits reset sequences
type Coordinator struct {
	mu       sync.Mutex
	auditLog []AuditEntry
}

// AuditEntry represents one reset action
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Step is one named reset action
type Step struct {
	Name string
	Run  func() error
}

// New creates a new reset coordinator
func New() *Coordinator {
	return &Coordinator{
		auditLog: make([]AuditEntry, 0),
	}
}

// Run executes every step in order on behalf of actor (e.g.
// "orchestrator.reset", "emergency.stop", "operator.cli"), recording each
// outcome. A failed step does not stop the remaining ones; the first error
// is returned.
func (c *Coordinator) Run(actor string, steps []Step) error {
	var firstErr error

	for _, step := range steps {
		err := step.Run()
		c.record(actor, step.Name, err)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("reset step %q: %w", step.Name, err)
		}
	}

	return firstErr
}

// record adds an entry to the audit log
func (c *Coordinator) record(actor, action string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := AuditEntry{
		Timestamp: time.Now(),
		Actor:     actor,
		Action:    action,
		Success:   err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.auditLog = append(c.auditLog, entry)
}

// AuditLog returns a copy of the complete audit log
func (c *Coordinator) AuditLog() []AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]AuditEntry, len(c.auditLog))
	copy(out, c.auditLog)
	return out
}

// Summary contains reset statistics
type Summary struct {
	TotalActions int `json:"total_actions"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
}

// GetSummary returns a summary of recorded reset actions
func (c *Coordinator) GetSummary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := Summary{TotalActions: len(c.auditLog)}
	for _, entry := range c.auditLog {
		if entry.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// String returns a string representation of the summary
func (s Summary) String() string {
	return fmt.Sprintf("Reset Summary: %d total actions, %d succeeded, %d failed",
		s.TotalActions, s.Succeeded, s.Failed)
}

// PrintAuditLog prints the audit log in a readable format
func (c *Coordinator) PrintAuditLog() {
	log := c.AuditLog()
	if len(log) == 0 {
		fmt.Println("No reset actions logged")
		return
	}

	fmt.Println("\nReset Audit Log:")
	for i, entry := range log {
		status := "ok"
		if !entry.Success {
			status = "FAILED"
		}
		fmt.Printf("%d. [%s] %s %s/%s\n", i+1, entry.Timestamp.Format("15:04:05"),
			status, entry.Actor, entry.Action)
		if entry.Error != "" {
			fmt.Printf("   error: %s\n", entry.Error)
		}
	}
}
