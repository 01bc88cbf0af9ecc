package lib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"tbs/src/config"
	"tbs/src/types"
	"time"
)

// RegistryClient talks to the booking registry, the upstream service that
// owns event and booking records. The engine never persists either.
type RegistryClient struct {
	BaseURL string

	inner *http.Client
}

var registryClient *RegistryClient

func GetRegistryClient() *RegistryClient {
	if registryClient != nil {
		return registryClient
	}
	c := &RegistryClient{
		BaseURL: config.RegistryBaseURL(),
		inner:   &http.Client{Timeout: 15 * time.Second},
	}
	registryClient = c
	return c
}

// NewRegistryClient Replace registry instance with custom client implementation
func NewRegistryClient(c *RegistryClient) *RegistryClient {
	if c.inner == nil {
		c.inner = &http.Client{Timeout: 15 * time.Second}
	}
	registryClient = c
	return registryClient
}

func (c *RegistryClient) GetEvent(id string, kind types.EventKind) (*types.EventDetail, error) {
	path := fmt.Sprintf("%s/api/events/getevent/%s", c.BaseURL, id)
	if kind == types.EVENT_KIND_EXPERIENCE {
		path = fmt.Sprintf("%s/api/events/getrecurringevent/%s", c.BaseURL, id)
	}
	res, err := c.inner.Get(path)
	if err != nil {
		log.Printf("[registry] Error retrieving event %s: %s\n", id, err.Error())
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("event %s not found", id)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", res.StatusCode)
	}
	var event types.EventDetail
	if err := json.NewDecoder(res.Body).Decode(&event); err != nil {
		return nil, err
	}
	event.Kind = kind
	if event.Kind == "" {
		event.Kind = types.EVENT_KIND_EVENT
	}
	return &event, nil
}

// GetBookingForCustomer returns nil without error when the customer has no
// booking for the event yet.
func (c *RegistryClient) GetBookingForCustomer(eventId string, bearer string) (*types.BookingRecord, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/bookings/event/customer/%s", c.BaseURL, eventId), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	res, err := c.inner.Do(req)
	if err != nil {
		log.Printf("[registry] Error retrieving booking for event %s: %s\n", eventId, err.Error())
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", res.StatusCode)
	}
	var booking types.BookingRecord
	if err := json.NewDecoder(res.Body).Decode(&booking); err != nil {
		return nil, err
	}
	if booking.ID == "" {
		return nil, nil
	}
	return &booking, nil
}

func (c *RegistryClient) CreateBooking(record *types.BookingRecord, bearer string) (*types.BookingRecord, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/bookings/create", c.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.inner.Do(req)
	if err != nil {
		log.Printf("[registry] Error creating booking for event %s: %s\n", record.EventID, err.Error())
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("registry returned status %d", res.StatusCode)
	}
	var created types.BookingRecord
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		return nil, err
	}
	return &created, nil
}
