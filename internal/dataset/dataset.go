// Package dataset loads the JSON sample data into memory and serves reads
// for the rest of the system. Collections are small and fully resident;
// every access is a linear scan guarded by one RWMutex.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"finsight/internal/logging"
	"finsight/internal/types"
)

// File names the store expects inside the data directory.
const (
	invoicesFile = "invoices.json"
	vendorsFile  = "vendors.json"
	usersFile    = "users.json"
	ticketsFile  = "tickets.json"
)

// Wire shapes of the JSON sample files.
type invoicesDoc struct {
	Invoices []types.Invoice `json:"invoices"`
}
type vendorsDoc struct {
	Vendors []types.Vendor `json:"vendors"`
}
type usersDoc struct {
	Users []types.User `json:"users"`
}
type ticketsDoc struct {
	Tickets []types.Ticket `json:"support_tickets"`
}

// Store holds the loaded collections. Invoices, vendors, and users are
// read-only after load; tickets grow through AppendTicket, the single
// mutating path.
type Store struct {
	mu       sync.RWMutex
	dir      string
	invoices []types.Invoice
	vendors  []types.Vendor
	users    []types.User
	tickets  []types.Ticket
}

// Load reads every sample file under dir into memory. A missing tickets
// file is tolerated (the collection starts empty); the other files are
// required.
func Load(dir string) (*Store, error) {
	s := &Store{dir: dir}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the sample files, replacing the in-memory collections.
// Tickets created at runtime are preserved by id so a dataset reload never
// drops state the assistant produced.
func (s *Store) Reload() error {
	timer := logging.StartTimer(logging.CategoryDataset, "Reload")
	defer timer.Stop()

	var inv invoicesDoc
	if err := readJSON(filepath.Join(s.dir, invoicesFile), &inv); err != nil {
		return fmt.Errorf("load invoices: %w", err)
	}
	var ven vendorsDoc
	if err := readJSON(filepath.Join(s.dir, vendorsFile), &ven); err != nil {
		return fmt.Errorf("load vendors: %w", err)
	}
	var usr usersDoc
	if err := readJSON(filepath.Join(s.dir, usersFile), &usr); err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	var tkt ticketsDoc
	if err := readJSON(filepath.Join(s.dir, ticketsFile), &tkt); err != nil {
		if !os.IsNotExist(unwrapPathError(err)) {
			return fmt.Errorf("load tickets: %w", err)
		}
		tkt.Tickets = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep runtime-created tickets across reloads.
	seen := make(map[string]struct{}, len(tkt.Tickets))
	for _, t := range tkt.Tickets {
		seen[t.ID] = struct{}{}
	}
	for _, t := range s.tickets {
		if _, ok := seen[t.ID]; !ok {
			tkt.Tickets = append(tkt.Tickets, t)
		}
	}

	s.invoices = inv.Invoices
	s.vendors = ven.Vendors
	s.users = usr.Users
	s.tickets = tkt.Tickets

	logging.Dataset("Loaded %d invoices, %d vendors, %d users, %d tickets from %s",
		len(s.invoices), len(s.vendors), len(s.users), len(s.tickets), s.dir)
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func unwrapPathError(err error) error {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err
	}
	return err
}

// Dir returns the data directory this store reads from.
func (s *Store) Dir() string {
	return s.dir
}

// Invoices returns a copy of the invoice collection in stable load order.
func (s *Store) Invoices() []types.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Invoice, len(s.invoices))
	copy(out, s.invoices)
	return out
}

// InvoiceByID returns the invoice with the given id.
func (s *Store) InvoiceByID(id string) (types.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return types.Invoice{}, false
}

// VendorByName looks a vendor up case-insensitively.
func (s *Store) VendorByName(name string) (types.Vendor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vendors {
		if strings.EqualFold(v.Name, name) {
			return v, true
		}
	}
	return types.Vendor{}, false
}

// Users returns all users (for the role-switching UI).
func (s *Store) Users() []types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.User, len(s.users))
	copy(out, s.users)
	return out
}

// UserByID returns the user with the given id.
func (s *Store) UserByID(id string) (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return types.User{}, false
}

// Tickets returns tickets scoped to a workspace, optionally restricted by
// status. Empty workspace or status imposes no constraint.
func (s *Store) Tickets(workspaceID string, status types.TicketStatus) []types.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Ticket
	for _, t := range s.tickets {
		if workspaceID != "" && t.WorkspaceID != workspaceID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TicketByID returns the ticket with the given id.
func (s *Store) TicketByID(id string) (types.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets {
		if t.ID == id {
			return t, true
		}
	}
	return types.Ticket{}, false
}

// HydrateTickets merges previously persisted tickets into the collection,
// skipping ids already loaded from tickets.json. Boot calls this with the
// durable store's tickets so created tickets survive a process restart.
// Returns the number of tickets added.
func (s *Store) HydrateTickets(tickets []types.Ticket) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[string]struct{}, len(s.tickets))
	for _, t := range s.tickets {
		present[t.ID] = struct{}{}
	}

	added := 0
	for _, t := range tickets {
		if _, ok := present[t.ID]; ok {
			continue
		}
		s.tickets = append(s.tickets, t)
		present[t.ID] = struct{}{}
		added++
	}
	if added > 0 {
		logging.Dataset("Hydrated %d persisted tickets", added)
	}
	return added
}

// AppendTicket adds a fully-formed ticket to the collection. Duplicate ids
// are rejected so a retried turn can never produce two records.
func (s *Store) AppendTicket(t types.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tickets {
		if existing.ID == t.ID {
			return fmt.Errorf("ticket %s already exists", t.ID)
		}
	}
	s.tickets = append(s.tickets, t)
	logging.Dataset("Appended ticket %s (%s)", t.ID, t.Title)
	return nil
}

// UpdateTicketStatus applies a status transition, enforcing the
// open -> in_progress -> resolved lifecycle.
func (s *Store) UpdateTicketStatus(id string, next types.TicketStatus, note, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tickets {
		if s.tickets[i].ID != id {
			continue
		}
		if !s.tickets[i].Status.CanTransition(next) {
			return fmt.Errorf("ticket %s cannot move from %s to %s", id, s.tickets[i].Status, next)
		}
		s.tickets[i].Status = next
		s.tickets[i].Updates = append(s.tickets[i].Updates, types.TicketUpdate{
			Status:    next,
			Note:      note,
			UpdatedBy: updatedBy,
		})
		return nil
	}
	return fmt.Errorf("ticket %s not found", id)
}
