package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RescuePending      = "pending"
	RescueAcknowledged = "acknowledged"
	RescueDispatched   = "dispatched"
	RescueInProgress   = "in_progress"
	RescueCompleted    = "completed"
	RescueCancelled    = "cancelled"
)

// RescueTransitions lists the statuses reachable from each status.
var RescueTransitions = map[string][]string{
	RescuePending:      {RescueAcknowledged, RescueCancelled},
	RescueAcknowledged: {RescueDispatched, RescueCancelled},
	RescueDispatched:   {RescueInProgress, RescueCancelled},
	RescueInProgress:   {RescueCompleted, RescueCancelled},
}

// CanTransition reports whether a rescue request may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range RescueTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type RescueRequest struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestNumber   string             `bson:"request_number" json:"requestNumber"`
	Requester       primitive.ObjectID `bson:"requester" json:"requester"`
	ContactInfo     ContactInfo        `bson:"contact_info" json:"contactInfo"`
	Location        GeoPoint           `bson:"location" json:"location"`
	Address         Address            `bson:"address" json:"address"`
	EmergencyType   string             `bson:"emergency_type" json:"emergencyType"`
	Severity        string             `bson:"severity" json:"severity"`
	Description     string             `bson:"description" json:"description"`
	PersonsAffected PersonsAffected    `bson:"persons_affected" json:"personsAffected"`
	MedicalInfo     MedicalInfo        `bson:"medical_info" json:"medicalInfo"`
	Photos          []Photo            `bson:"photos,omitempty" json:"photos,omitempty"`
	Status          string             `bson:"status" json:"status"`
	Priority        int                `bson:"priority" json:"priority"`
	AssignedTo      *Assignment        `bson:"assigned_to,omitempty" json:"assignedTo,omitempty"`
	StatusHistory   []StatusChange     `bson:"status_history" json:"statusHistory"`
	Notes           []RescueNote       `bson:"notes" json:"notes"`
	CompletionInfo  *CompletionInfo    `bson:"completion_info,omitempty" json:"completionInfo,omitempty"`
	IsArchived      bool               `bson:"is_archived" json:"isArchived"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}

type ContactInfo struct {
	Name        string `bson:"name" json:"name" validate:"required,max=100"`
	PhoneNumber string `bson:"phone_number" json:"phoneNumber" validate:"required,ph_phone"`
}

type PersonsAffected struct {
	Adults   int `bson:"adults" json:"adults" validate:"gte=0"`
	Children int `bson:"children" json:"children" validate:"gte=0"`
	Seniors  int `bson:"seniors" json:"seniors" validate:"gte=0"`
	Disabled int `bson:"disabled" json:"disabled" validate:"gte=0"`
}

func (p PersonsAffected) Total() int {
	return p.Adults + p.Children + p.Seniors + p.Disabled
}

type MedicalInfo struct {
	HasInjuries          bool   `bson:"has_injuries" json:"hasInjuries"`
	InjuryDescription    string `bson:"injury_description,omitempty" json:"injuryDescription,omitempty"`
	HasChronicConditions bool   `bson:"has_chronic_conditions" json:"hasChronicConditions"`
	MedicationNeeded     string `bson:"medication_needed,omitempty" json:"medicationNeeded,omitempty"`
}

type Photo struct {
	URL         string    `bson:"url" json:"url"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	UploadedAt  time.Time `bson:"uploaded_at" json:"uploadedAt"`
}

type Assignment struct {
	Responder        primitive.ObjectID `bson:"responder" json:"responder"`
	Team             string             `bson:"team,omitempty" json:"team,omitempty"`
	AssignedAt       time.Time          `bson:"assigned_at" json:"assignedAt"`
	EstimatedArrival *time.Time         `bson:"estimated_arrival,omitempty" json:"estimatedArrival,omitempty"`
}

// StatusChange records the status a request left, who moved it and when.
type StatusChange struct {
	Status    string             `bson:"status" json:"status"`
	UpdatedBy primitive.ObjectID `bson:"updated_by" json:"updatedBy"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
}

type RescueNote struct {
	Author     primitive.ObjectID `bson:"author" json:"author"`
	Content    string             `bson:"content" json:"content"`
	IsInternal bool               `bson:"is_internal" json:"isInternal"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
}

type CompletionInfo struct {
	CompletedAt time.Time          `bson:"completed_at" json:"completedAt"`
	CompletedBy primitive.ObjectID `bson:"completed_by" json:"completedBy"`
	Outcome     string             `bson:"outcome,omitempty" json:"outcome,omitempty"`
	FinalNotes  string             `bson:"final_notes,omitempty" json:"finalNotes,omitempty"`
}

type CreateRescueRequest struct {
	ContactInfo     ContactInfo     `json:"contactInfo" validate:"required"`
	Longitude       float64         `json:"longitude" validate:"gte=-180,lte=180"`
	Latitude        float64         `json:"latitude" validate:"gte=-90,lte=90"`
	Address         Address         `json:"address"`
	EmergencyType   string          `json:"emergencyType" validate:"required,oneof=flood medical trapped evacuation fire landslide other"`
	Severity        string          `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Description     string          `json:"description" validate:"required,max=1000"`
	PersonsAffected PersonsAffected `json:"personsAffected"`
	MedicalInfo     MedicalInfo     `json:"medicalInfo"`
	Photos          []Photo         `json:"photos,omitempty"`
	Priority        int             `json:"priority" validate:"omitempty,min=1,max=5"`
}

type UpdateRescueStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=acknowledged dispatched in_progress completed cancelled"`
	Notes   string `json:"notes" validate:"max=1000"`
	Outcome string `json:"outcome" validate:"omitempty,oneof=successful partial unsuccessful referred"`
}

type AssignResponderRequest struct {
	ResponderID      string     `json:"responderId" validate:"required"`
	Team             string     `json:"team"`
	EstimatedArrival *time.Time `json:"estimatedArrival,omitempty"`
}

type AddNoteRequest struct {
	Content    string `json:"content" validate:"required,max=2000"`
	IsInternal bool   `json:"isInternal"`
}

type RescueFilter struct {
	Status    string
	Requester *primitive.ObjectID
	Page      int
	Limit     int
}
