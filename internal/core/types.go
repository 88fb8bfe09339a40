package core

import (
	"time"
)

// JobStatus is the lifecycle state of a print job. Completed, Failed and
// Cancelled are terminal; a job never leaves a terminal state.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusClaimed   JobStatus = "claimed"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether a job in this status can still change.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Valid reports whether s is a known status value.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusClaimed, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type AssignmentType string

const (
	AssignmentCategory AssignmentType = "category"
	AssignmentMenuItem AssignmentType = "menu_item"
)

type ConnectivityMode string

const (
	ConnectivityLocal  ConnectivityMode = "local"
	ConnectivityRemote ConnectivityMode = "remote"
	ConnectivityVPN    ConnectivityMode = "vpn"
)

type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionError        ConnectionStatus = "error"
	ConnectionUnknown      ConnectionStatus = "unknown"
)

// Job priorities are "lower = more urgent". Assignment priorities are the
// opposite convention, "higher wins"; see PrinterAssignment.
const (
	DefaultJobPriority = 5
	UrgentJobPriority  = 1
)

// OrderItemSnapshot is an immutable copy of the order item fields needed to
// print. Editing the order after dispatch does not change queued jobs.
type OrderItemSnapshot struct {
	ItemID       string   `json:"itemId"`
	CategoryID   string   `json:"categoryId,omitempty"`
	Name         string   `json:"name"`
	Quantity     int      `json:"quantity"`
	Variant      string   `json:"variant,omitempty"`
	Modifiers    []string `json:"modifiers,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// PrintJob is one unit of work: a batch of order items destined for a single
// printer. Owned exclusively by the job queue once created.
type PrintJob struct {
	ID              string              `json:"id"`
	OrderID         string              `json:"orderId"`
	OrderNumber     string              `json:"orderNumber,omitempty"`
	RestaurantID    string              `json:"restaurantId"`
	TargetPrinterID string              `json:"targetPrinterId"`
	Items           []OrderItemSnapshot `json:"items"`
	Priority        int                 `json:"priority"`
	Status          JobStatus           `json:"status"`
	ErrorMessage    string              `json:"error,omitempty"`
	ClaimedBy       string              `json:"claimedBy,omitempty"`
	ClaimedAt       *time.Time          `json:"claimedAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// PrinterAssignment maps a menu category or a specific menu item to a target
// printer. Higher priority wins within a specificity tier; assignments are
// deactivated, never deleted.
type PrinterAssignment struct {
	ID           string         `json:"id"`
	RestaurantID string         `json:"restaurantId"`
	PrinterID    string         `json:"printerId"`
	Type         AssignmentType `json:"assignmentType"`
	TargetID     string         `json:"targetId"`
	Priority     int            `json:"priority"`
	IsActive     bool           `json:"isActive"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// PrinterDescriptor describes a registered physical printer. Status is
// advisory: a stale-unknown printer may still be attempted.
type PrinterDescriptor struct {
	ID              string           `json:"id"`
	RestaurantID    string           `json:"restaurantId"`
	Name            string           `json:"name"`
	Mode            ConnectivityMode `json:"connectivityMode"`
	Address         string           `json:"address"`
	Port            int              `json:"port"`
	Type            string           `json:"type,omitempty"`
	Status          ConnectionStatus `json:"connectionStatus"`
	LastConnectedAt *time.Time       `json:"lastConnectedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Order is the caller-supplied view of an order being dispatched.
type Order struct {
	ID           string              `json:"orderId"`
	Number       string              `json:"orderNumber"`
	RestaurantID string              `json:"restaurantId"`
	Items        []OrderItemSnapshot `json:"items"`
	Urgent       bool                `json:"urgent,omitempty"`
	Redundant    bool                `json:"redundant,omitempty"`
}

// QueueStats summarizes job counts for one restaurant.
type QueueStats struct {
	TotalJobs     int `json:"totalJobs"`
	CompletedJobs int `json:"completedJobs"`
	FailedJobs    int `json:"failedJobs"`
	PendingJobs   int `json:"pendingJobs"`
	Printers      int `json:"printers"`
}
