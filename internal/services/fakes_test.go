package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bantay-backend/internal/models"
	"bantay-backend/internal/repository"
	"bantay-backend/pkg/geo"
	"bantay-backend/pkg/sequence"
)

// The fakes below keep copies of every document and apply the same
// conditional-update filters as the Mongo repositories.

type fakeAlertStore struct {
	mu     sync.Mutex
	alerts map[primitive.ObjectID]*models.Alert
	// findErr, when set, is returned by FindByID.
	findErr error
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: map[primitive.ObjectID]*models.Alert{}}
}

func cloneAlert(a *models.Alert) *models.Alert {
	c := *a
	return &c
}

func (f *fakeAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.AlertID == alert.AlertID {
			return repository.ErrDuplicate
		}
	}
	alert.ID = primitive.NewObjectID()
	f.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

func (f *fakeAlertStore) put(alert *models.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if alert.ID.IsZero() {
		alert.ID = primitive.NewObjectID()
	}
	f.alerts[alert.ID] = cloneAlert(alert)
}

func (f *fakeAlertStore) get(id primitive.ObjectID) *models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneAlert(f.alerts[id])
}

func (f *fakeAlertStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	a, ok := f.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneAlert(a), nil
}

func (f *fakeAlertStore) FindByCode(ctx context.Context, code string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.AlertID == code {
			return cloneAlert(a), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAlertStore) update(id primitive.ObjectID, match func(*models.Alert) bool, apply func(*models.Alert)) (before, after *models.Alert, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok || !match(a) {
		return nil, nil, repository.ErrNoMatch
	}
	before = cloneAlert(a)
	apply(a)
	return before, cloneAlert(a), nil
}

func (f *fakeAlertStore) UpdateContent(ctx context.Context, id primitive.ObjectID, c models.AlertContent, now time.Time) (*models.Alert, error) {
	_, after, err := f.update(id,
		func(a *models.Alert) bool { return a.IsActive && !a.IsPublished },
		func(a *models.Alert) {
			a.Title, a.Message, a.AlertType, a.Severity = c.Title, c.Message, c.AlertType, c.Severity
			a.TargetArea, a.Instructions, a.ExpiresAt, a.UpdatedAt = c.TargetArea, c.Instructions, c.ExpiresAt, now
			if c.Channels != nil {
				a.Channels = *c.Channels
			}
		})
	return after, err
}

func (f *fakeAlertStore) Publish(ctx context.Context, id, publisher primitive.ObjectID, recipients int64, now time.Time) (*models.Alert, error) {
	_, after, err := f.update(id,
		func(a *models.Alert) bool { return a.IsActive && !a.IsPublished && a.ExpiresAt.After(now) },
		func(a *models.Alert) {
			a.IsPublished = true
			a.PublishedAt = &now
			a.AuthorizedBy = &publisher
			a.Statistics.TotalRecipients = recipients
			a.UpdatedAt = now
		})
	return after, err
}

func (f *fakeAlertStore) Extend(ctx context.Context, id primitive.ObjectID, expiresAt, now time.Time) (*models.Alert, error) {
	before, _, err := f.update(id,
		func(a *models.Alert) bool { return a.IsActive && a.ExpiresAt.After(now) },
		func(a *models.Alert) { a.ExpiresAt, a.UpdatedAt = expiresAt, now })
	return before, err
}

func (f *fakeAlertStore) Deactivate(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Alert, error) {
	_, after, err := f.update(id,
		func(a *models.Alert) bool { return a.IsActive },
		func(a *models.Alert) { a.IsActive, a.UpdatedAt = false, now })
	return after, err
}

func (f *fakeAlertStore) Cancel(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Alert, error) {
	_, after, err := f.update(id,
		func(a *models.Alert) bool { return a.IsActive && !a.IsPublished },
		func(a *models.Alert) { a.IsActive, a.UpdatedAt = false, now })
	return after, err
}

func (f *fakeAlertStore) IncrementStat(ctx context.Context, id primitive.ObjectID, channel string, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.alerts[id]
	switch channel {
	case models.ChannelSMS:
		a.Statistics.SMSSent += n
	case models.ChannelEmail:
		a.Statistics.EmailsSent += n
	case models.ChannelPush:
		a.Statistics.PushNotificationsSent += n
	}
	return nil
}

func (f *fakeAlertStore) MarkChannelSent(ctx context.Context, id primitive.ObjectID, channel string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.alerts[id]
	state := models.ChannelState{Sent: true, SentAt: &at}
	switch channel {
	case models.ChannelSMS:
		state.Enabled = a.Channels.SMS.Enabled
		a.Channels.SMS = state
	case models.ChannelEmail:
		state.Enabled = a.Channels.Email.Enabled
		a.Channels.Email = state
	case models.ChannelPush:
		state.Enabled = a.Channels.Push.Enabled
		a.Channels.Push = state
	case models.ChannelWeb:
		state.Enabled = a.Channels.Web.Enabled
		a.Channels.Web = state
	}
	return nil
}

func (f *fakeAlertStore) all() []*models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Alert, 0, len(f.alerts))
	for _, a := range f.alerts {
		out = append(out, cloneAlert(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeAlertStore) List(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, int64, error) {
	var out []*models.Alert
	for _, a := range f.all() {
		if filter.AlertType != "" && a.AlertType != filter.AlertType {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.IsActive != nil && a.IsActive != *filter.IsActive {
			continue
		}
		if filter.IsPublished != nil && a.IsPublished != *filter.IsPublished {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func live(a *models.Alert, now time.Time) bool {
	return a.IsActive && a.IsPublished && a.ExpiresAt.After(now)
}

func (f *fakeAlertStore) FindActive(ctx context.Context, area string, now time.Time) ([]*models.Alert, error) {
	var out []*models.Alert
	for _, a := range f.all() {
		if !live(a, now) {
			continue
		}
		if area == "" || a.TargetArea.Type == models.TargetBarangayWide || contains(a.TargetArea.Areas, area) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) FindWithinRadius(ctx context.Context, center geo.Point, km float64, now time.Time) ([]*models.Alert, error) {
	var out []*models.Alert
	for _, a := range f.all() {
		if !live(a, now) {
			continue
		}
		if a.TargetArea.Type == models.TargetBarangayWide {
			out = append(out, a)
			continue
		}
		if r := a.TargetArea.Radius; r != nil && geo.WithinRadius(center, geo.Point{Lon: r.Center.Lon(), Lat: r.Center.Lat()}, km) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) Statistics(ctx context.Context, from, to time.Time) (*models.AlertStatistics, error) {
	stats := &models.AlertStatistics{ByType: map[string]int64{}, BySeverity: map[string]int64{}}
	for _, a := range f.all() {
		if a.CreatedAt.Before(from) || !a.CreatedAt.Before(to) {
			continue
		}
		stats.Total++
		stats.ByType[a.AlertType]++
		stats.BySeverity[a.Severity]++
		stats.TotalRecipients += a.Statistics.TotalRecipients
		stats.SMSSent += a.Statistics.SMSSent
		stats.EmailsSent += a.Statistics.EmailsSent
		stats.PushNotificationsSent += a.Statistics.PushNotificationsSent
	}
	return stats, nil
}

func (f *fakeAlertStore) IDsCreatedBetween(ctx context.Context, from, to time.Time) ([]primitive.ObjectID, error) {
	var ids []primitive.ObjectID
	for _, a := range f.all() {
		if !a.CreatedAt.Before(from) && a.CreatedAt.Before(to) {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (f *fakeAuditStore) Append(ctx context.Context, entry *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = primitive.NewObjectID()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditStore) ListByAlert(ctx context.Context, alertID primitive.ObjectID) ([]models.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.AuditEntry{}
	for _, e := range f.entries {
		if e.AlertID == alertID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) count(alertID primitive.ObjectID, kind string) int {
	entries, _ := f.ListByAlert(context.Background(), alertID)
	n := 0
	for _, e := range entries {
		if e.Type == kind {
			n++
		}
	}
	return n
}

// fakeDeliveryStore mimics an unordered insert: with insertErr set, only the
// first insertLimit rows are stored before the error is returned.
type fakeDeliveryStore struct {
	mu          sync.Mutex
	deliveries  []*models.Delivery
	insertErr   error
	insertLimit int
}

func (f *fakeDeliveryStore) InsertPending(ctx context.Context, deliveries []*models.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range deliveries {
		if f.insertErr != nil && i >= f.insertLimit {
			break
		}
		c := *d
		c.Status = models.DeliveryPending
		f.deliveries = append(f.deliveries, &c)
	}
	return f.insertErr
}

func (f *fakeDeliveryStore) MarkResult(ctx context.Context, id primitive.ObjectID, status, errMsg string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deliveries {
		if d.ID == id {
			d.Status = status
			d.Error = errMsg
			if status == models.DeliverySent {
				d.SentAt = &at
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeDeliveryStore) ListByAlert(ctx context.Context, alertID primitive.ObjectID) ([]models.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Delivery{}
	for _, d := range f.deliveries {
		if d.AlertID == alertID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDeliveryStore) byChannel(channel string) []models.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Delivery
	for _, d := range f.deliveries {
		if d.Channel == channel {
			out = append(out, *d)
		}
	}
	return out
}

type ackKey struct {
	alert, user primitive.ObjectID
}

type fakeAckStore struct {
	mu   sync.Mutex
	acks map[ackKey]*models.Acknowledgment
}

func newFakeAckStore() *fakeAckStore {
	return &fakeAckStore{acks: map[ackKey]*models.Acknowledgment{}}
}

func (f *fakeAckStore) Upsert(ctx context.Context, ack *models.Acknowledgment) (*models.Acknowledgment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ackKey{ack.AlertID, ack.UserID}
	if existing, ok := f.acks[key]; ok {
		c := *existing
		return &c, false, nil
	}
	stored := *ack
	stored.ID = primitive.NewObjectID()
	f.acks[key] = &stored
	c := stored
	return &c, true, nil
}

func (f *fakeAckStore) ListByAlert(ctx context.Context, alertID primitive.ObjectID) ([]models.Acknowledgment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Acknowledgment{}
	for k, a := range f.acks {
		if k.alert == alertID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAckStore) CountForAlerts(ctx context.Context, alertIDs []primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.acks {
		for _, id := range alertIDs {
			if k.alert == id {
				n++
			}
		}
	}
	return n, nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	f := &fakeUserStore{users: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		if u.ID.IsZero() {
			u.ID = primitive.NewObjectID()
		}
		c := *u
		f.users[u.ID] = &c
	}
	return f
}

func (f *fakeUserStore) filter(match func(*models.User) bool) []*models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.User{}
	for _, u := range f.users {
		if match(u) {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out
}

func (f *fakeUserStore) FindActive(ctx context.Context) ([]*models.User, error) {
	return f.filter(func(u *models.User) bool { return u.IsActive }), nil
}

func (f *fakeUserStore) FindActiveBySitios(ctx context.Context, sitios []string) ([]*models.User, error) {
	return f.filter(func(u *models.User) bool { return u.IsActive && contains(sitios, u.Address.Sitio) }), nil
}

// FindActiveWithinRadius pads the circle slightly, like a coarse index pre-filter would.
func (f *fakeUserStore) FindActiveWithinRadius(ctx context.Context, center geo.Point, km float64) ([]*models.User, error) {
	return f.filter(func(u *models.User) bool {
		return u.IsActive && geo.WithinRadius(center, geo.Point{Lon: u.Location.Lon(), Lat: u.Location.Lat()}, km*1.01)
	}), nil
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	c := *user
	f.users[user.ID] = &c
	return nil
}

func (f *fakeUserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	found := f.filter(func(u *models.User) bool { return u.ID == id })
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	found := f.filter(func(u *models.User) bool { return u.Email == email })
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (f *fakeUserStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	found := f.filter(func(u *models.User) bool {
		return u.PasswordResetToken == token && u.PasswordResetExpiry != nil && u.PasswordResetExpiry.After(now)
	})
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (f *fakeUserStore) List(ctx context.Context, filter models.UserFilter) ([]*models.User, int64, error) {
	out := f.filter(func(u *models.User) bool {
		return (filter.Role == "" || u.Role == filter.Role) && (filter.IsActive == nil || u.IsActive == *filter.IsActive)
	})
	return out, int64(len(out)), nil
}

func (f *fakeUserStore) mutate(id primitive.ObjectID, apply func(*models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	apply(u)
	return nil
}

func (f *fakeUserStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	err := f.mutate(id, func(u *models.User) {
		if v, ok := set["first_name"].(string); ok {
			u.FirstName = v
		}
		if v, ok := set["last_name"].(string); ok {
			u.LastName = v
		}
		if v, ok := set["contact_number"].(string); ok {
			u.ContactNumber = v
		}
		if v, ok := set["address"].(models.Address); ok {
			u.Address = v
		}
		if v, ok := set["location"].(models.GeoPoint); ok {
			u.Location = v
		}
		if v, ok := set["preferences"].(models.Preferences); ok {
			u.Preferences = v
		}
	})
	if err != nil {
		return nil, err
	}
	return f.FindByID(ctx, id)
}

func (f *fakeUserStore) SetPasswordReset(ctx context.Context, id primitive.ObjectID, token string, expiry time.Time) error {
	return f.mutate(id, func(u *models.User) {
		u.PasswordResetToken = token
		u.PasswordResetExpiry = &expiry
	})
}

func (f *fakeUserStore) ResetPassword(ctx context.Context, id primitive.ObjectID, hash string, now time.Time) error {
	return f.mutate(id, func(u *models.User) {
		u.Password = hash
		u.PasswordResetToken = ""
		u.PasswordResetExpiry = nil
	})
}

func (f *fakeUserStore) SetVerificationToken(ctx context.Context, id primitive.ObjectID, token string, now time.Time) error {
	return f.mutate(id, func(u *models.User) { u.VerificationToken = token })
}

func (f *fakeUserStore) VerifyEmail(ctx context.Context, token string, now time.Time) (*models.User, error) {
	found := f.filter(func(u *models.User) bool {
		return !u.IsVerified && u.VerificationToken != "" && u.VerificationToken == token
	})
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	if err := f.mutate(found[0].ID, func(u *models.User) {
		u.IsVerified = true
		u.VerificationToken = ""
	}); err != nil {
		return nil, err
	}
	return f.FindByID(ctx, found[0].ID)
}

func (f *fakeUserStore) UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return f.mutate(id, func(u *models.User) { u.LastLogin = &at })
}

func (f *fakeUserStore) SetActive(ctx context.Context, id primitive.ObjectID, active bool, now time.Time) error {
	return f.mutate(id, func(u *models.User) { u.IsActive = active })
}

type fakeRescueStore struct {
	mu       sync.Mutex
	requests map[primitive.ObjectID]*models.RescueRequest
}

func newFakeRescueStore() *fakeRescueStore {
	return &fakeRescueStore{requests: map[primitive.ObjectID]*models.RescueRequest{}}
}

func cloneRescue(r *models.RescueRequest) *models.RescueRequest {
	c := *r
	c.StatusHistory = append([]models.StatusChange(nil), r.StatusHistory...)
	c.Notes = append([]models.RescueNote(nil), r.Notes...)
	return &c
}

func (f *fakeRescueStore) Create(ctx context.Context, req *models.RescueRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.RequestNumber == req.RequestNumber {
			return repository.ErrDuplicate
		}
	}
	req.ID = primitive.NewObjectID()
	f.requests[req.ID] = cloneRescue(req)
	return nil
}

func (f *fakeRescueStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.RescueRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRescue(r), nil
}

func (f *fakeRescueStore) FindByNumber(ctx context.Context, number string) (*models.RescueRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.RequestNumber == number {
			return cloneRescue(r), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRescueStore) List(ctx context.Context, filter models.RescueFilter) ([]*models.RescueRequest, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.RescueRequest{}
	for _, r := range f.requests {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Requester != nil && r.Requester != *filter.Requester {
			continue
		}
		out = append(out, cloneRescue(r))
	}
	return out, int64(len(out)), nil
}

func (f *fakeRescueStore) TransitionStatus(ctx context.Context, id primitive.ObjectID, from string, change models.StatusChange, set bson.M) (*models.RescueRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok || r.Status != from {
		return nil, repository.ErrNoMatch
	}
	r.Status = change.Status
	r.UpdatedAt = change.UpdatedAt
	r.StatusHistory = append(r.StatusHistory, change)
	if v, ok := set["completion_info"].(models.CompletionInfo); ok {
		r.CompletionInfo = &v
	}
	if v, ok := set["assigned_to"].(models.Assignment); ok {
		r.AssignedTo = &v
	}
	return cloneRescue(r), nil
}

func (f *fakeRescueStore) AddNote(ctx context.Context, id primitive.ObjectID, note models.RescueNote) (*models.RescueRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.Notes = append(r.Notes, note)
	return cloneRescue(r), nil
}

func (f *fakeRescueStore) FindWithinRadius(ctx context.Context, center geo.Point, km float64) ([]*models.RescueRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.RescueRequest{}
	for _, r := range f.requests {
		if geo.WithinRadius(center, geo.Point{Lon: r.Location.Lon(), Lat: r.Location.Lat()}, km) {
			out = append(out, cloneRescue(r))
		}
	}
	return out, nil
}

type memoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func (m *memoryCounter) Increment(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]int64{}
	}
	m.values[key]++
	return m.values[key], nil
}

func newIDs(now func() time.Time) *sequence.Generator {
	manila, _ := time.LoadLocation("Asia/Manila")
	return sequence.NewGenerator(&memoryCounter{}, manila).WithClock(now)
}

type broadcast struct {
	Room    string
	Event   string
	Payload interface{}
}

// fakeHub reports one connection for rooms listed in online.
type fakeHub struct {
	mu     sync.Mutex
	online map[string]bool
	sent   []broadcast
}

func newFakeHub(online ...string) *fakeHub {
	h := &fakeHub{online: map[string]bool{}}
	for _, room := range online {
		h.online[room] = true
	}
	return h
}

func (h *fakeHub) BroadcastToRoom(room, event string, payload interface{}) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, broadcast{Room: room, Event: event, Payload: payload})
	if h.online[room] {
		return 1
	}
	return 0
}

func (h *fakeHub) events(room string) []broadcast {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []broadcast
	for _, b := range h.sent {
		if b.Room == room {
			out = append(out, b)
		}
	}
	return out
}

// syncDispatch runs the dispatcher inline so tests can assert on its effects.
type syncDispatch struct {
	dispatcher *Dispatcher
	mu         sync.Mutex
	calls      int
}

func (s *syncDispatch) Submit(ctx context.Context, alert *models.Alert, recipients []models.Recipient) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	s.dispatcher.Dispatch(ctx, alert, recipients)
	return nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
