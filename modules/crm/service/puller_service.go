package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haloestate/leadpipe/internal/platform/crmclient"
	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/haloestate/leadpipe/internal/platform/notify"
	platformredis "github.com/haloestate/leadpipe/internal/platform/redis"
	"github.com/haloestate/leadpipe/modules/crm/model"
	"github.com/haloestate/leadpipe/modules/crm/ports"
	leadsports "github.com/haloestate/leadpipe/modules/leads/ports"
	"github.com/haloestate/leadpipe/pkg/normalize"
	"github.com/haloestate/leadpipe/pkg/pipelineerr"
	"go.uber.org/zap"
)

const peoplePageSize = 100

// maxStoredErrors bounds the per-record error list persisted to a SyncLog.
const maxStoredErrors = 100

// crmHTTPTimeout is the recommended per-request timeout for outbound CRM
// calls.
const crmHTTPTimeout = 30 * time.Second

// notifyErrorThreshold is the per-record error count past which a
// completed_with_errors run also fires an ops alert, not just a failed one.
const notifyErrorThreshold = 10

// syncLockTTL bounds how long a connection's sync mutex is held, so a
// crashed worker doesn't wedge the connection forever.
const syncLockTTL = 15 * time.Minute

// usersCacheTTL bounds how long a fetched user map is reused across runs.
const usersCacheTTL = 5 * time.Minute

// PullerService implements the CRM Puller: per connection, page the CRM's
// people endpoint (full or incremental), upsert mirrored CrmLead rows
// gated on a content hash, and record one SyncLog per run.
type PullerService struct {
	connections ports.ConnectionRepository
	crmLeads    ports.CrmLeadRepository
	syncLogs    ports.SyncLogRepository
	embeddings  leadsports.EmbeddingEnqueuer
	notifier    *notify.Notifier
	redis       *platformredis.Client
	log         *logger.Logger
}

func NewPullerService(
	connections ports.ConnectionRepository,
	crmLeads ports.CrmLeadRepository,
	syncLogs ports.SyncLogRepository,
	embeddings leadsports.EmbeddingEnqueuer,
	notifier *notify.Notifier,
	redis *platformredis.Client,
	log *logger.Logger,
) *PullerService {
	return &PullerService{connections: connections, crmLeads: crmLeads, syncLogs: syncLogs, embeddings: embeddings, notifier: notifier, redis: redis, log: log}
}

// errSyncInProgress means another worker process already holds the
// connection's sync mutex.
var errSyncInProgress = fmt.Errorf("crm sync already in progress for this connection")

func (s *PullerService) syncLockKey(connectionID string) string {
	return "crm_sync_lock:" + connectionID
}

func (s *PullerService) usersCacheKey(connectionID string) string {
	return "crm_users:" + connectionID
}

// acquireSyncLock claims the per-connection mutex via SETNX so two worker
// processes never run the same connection's sync concurrently. A nil redis
// client (not configured) disables the guard rather than blocking startup.
func (s *PullerService) acquireSyncLock(ctx context.Context, connectionID string) (bool, error) {
	if s.redis == nil {
		return true, nil
	}
	return s.redis.SetNX(ctx, s.syncLockKey(connectionID), "1", syncLockTTL).Result()
}

func (s *PullerService) releaseSyncLock(ctx context.Context, connectionID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, s.syncLockKey(connectionID)).Err(); err != nil {
		s.log.Warn("crm puller: failed to release sync lock", zap.String("connection_id", connectionID), zap.Error(err))
	}
}

// cachedUsers returns the connection's cached user_id -> User map, reused
// across runs so the puller doesn't repage /users every sync.
func (s *PullerService) cachedUsers(ctx context.Context, connectionID string) (map[string]crmclient.User, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, s.usersCacheKey(connectionID)).Bytes()
	if err != nil {
		return nil, false
	}
	var users map[string]crmclient.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, false
	}
	return users, true
}

func (s *PullerService) cacheUsers(ctx context.Context, connectionID string, users map[string]crmclient.User) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.usersCacheKey(connectionID), raw, usersCacheTTL).Err(); err != nil {
		s.log.Warn("crm puller: failed to cache users", zap.String("connection_id", connectionID), zap.Error(err))
	}
}

// RunResult summarizes one sync.
type RunResult struct {
	SyncLogID string
	Fetched   int
	Created   int
	Updated   int
	Errors    []string
}

// Sync runs one full-or-incremental pull for the given connection.
// Incremental is used whenever the connection has a last_sync_at and force
// is false.
func (s *PullerService) Sync(ctx context.Context, tenantID, connectionID string, force bool) (*RunResult, error) {
	conn, err := s.connections.GetByID(ctx, tenantID, connectionID)
	if err != nil {
		return nil, err
	}

	acquired, err := s.acquireSyncLock(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, errSyncInProgress
	}
	defer s.releaseSyncLock(ctx, conn.ID)

	syncStartedAt := time.Now().UTC()
	syncLog := &model.SyncLog{
		CrmConnectionID: conn.ID,
		SyncType:        "incremental",
		Status:          model.SyncRunStatusRunning,
		StartedAt:       syncStartedAt,
	}
	if force || conn.LastSyncAt == nil {
		syncLog.SyncType = "full"
	}
	if err := s.syncLogs.Create(ctx, syncLog); err != nil {
		return nil, err
	}

	client := crmclient.New(conn.BaseURL, conn.APIKey, crmHTTPTimeout)
	if err := client.TestConnection(ctx); err != nil {
		s.finish(ctx, syncLog.ID, model.SyncRunStatusFailed, syncStartedAt, 0, 0, 0, []string{err.Error()})
		s.notifier.OpsAlert(ctx, "crm sync failed", fmt.Sprintf("connection %s: test connection failed: %v", conn.ID, err))
		return nil, err
	}

	userByID, cached := s.cachedUsers(ctx, conn.ID)
	if !cached {
		users, err := client.FetchAllUsers(ctx)
		if err != nil {
			s.finish(ctx, syncLog.ID, model.SyncRunStatusFailed, syncStartedAt, 0, 0, 0, []string{err.Error()})
			s.notifier.OpsAlert(ctx, "crm sync failed", fmt.Sprintf("connection %s: fetch users failed: %v", conn.ID, err))
			return nil, err
		}
		userByID = make(map[string]crmclient.User, len(users))
		for _, u := range users {
			userByID[u.ID] = u
		}
		s.cacheUsers(ctx, conn.ID, userByID)
	}

	var updatedAfter *time.Time
	if syncLog.SyncType == "incremental" {
		updatedAfter = conn.LastSyncAt
	}

	var fetched, created, updated int
	var errs []string
	offset := 0
	for {
		people, _, hasMore, err := client.FetchPeoplePage(ctx, offset, peoplePageSize, updatedAfter)
		if err != nil {
			// A page-fetch failure aborts the whole run: per spec §4.3's
			// fatal-vs-per-record distinction, a corpus-wide failure is not
			// something a per-record retry can recover from.
			s.finish(ctx, syncLog.ID, model.SyncRunStatusFailed, syncStartedAt, fetched, created, updated, append(errs, err.Error()))
			s.notifier.OpsAlert(ctx, "crm sync failed", fmt.Sprintf("connection %s: page fetch failed at offset %d: %v", conn.ID, offset, err))
			return nil, err
		}

		for _, person := range people {
			fetched++
			c, u, recErr := s.upsertPerson(ctx, tenantID, conn.ID, person, userByID)
			if recErr != nil {
				if len(errs) < maxStoredErrors {
					errs = append(errs, fmt.Sprintf("%s: %v", person.ID, recErr))
				}
				s.log.Error("crm puller: upsert person failed", zap.String("connection_id", conn.ID), zap.String("external_id", person.ID), zap.Error(recErr))
				continue
			}
			created += c
			updated += u
		}

		offset += len(people)
		if !hasMore || len(people) == 0 {
			break
		}
	}

	status := model.SyncRunStatusCompleted
	if len(errs) > 0 {
		status = model.SyncRunStatusCompletedWithErrors
	}
	s.finish(ctx, syncLog.ID, status, syncStartedAt, fetched, created, updated, errs)
	if len(errs) > notifyErrorThreshold {
		s.notifier.OpsAlert(ctx, "crm sync completed with errors", fmt.Sprintf("connection %s: %d/%d records failed", conn.ID, len(errs), fetched))
	}

	connStatus := model.SyncStatusCompleted
	if status == model.SyncRunStatusCompletedWithErrors {
		connStatus = model.SyncStatusCompletedWithErrors
	}
	if err := s.connections.UpdateSyncState(ctx, conn.ID, syncStartedAt, connStatus); err != nil {
		return nil, err
	}

	return &RunResult{SyncLogID: syncLog.ID, Fetched: fetched, Created: created, Updated: updated, Errors: errs}, nil
}

func (s *PullerService) finish(ctx context.Context, syncLogID string, status model.SyncRunStatus, startedAt time.Time, fetched, created, updated int, errs []string) {
	finishedAt := time.Now().UTC()
	durationMs := finishedAt.Sub(startedAt).Milliseconds()
	if err := s.syncLogs.Finish(ctx, syncLogID, status, finishedAt, durationMs, fetched, created, updated, errs); err != nil {
		s.log.Error("crm puller: finish sync log failed", zap.String("sync_log_id", syncLogID), zap.Error(err))
	}
}

// upsertPerson maps one CRM person into a CrmLead, upserts it, and enqueues
// an embedding refresh if the row is new or its content changed.
func (s *PullerService) upsertPerson(ctx context.Context, tenantID, connectionID string, person crmclient.Person, userByID map[string]crmclient.User) (created, updated int, err error) {
	email := firstContactValue(person.Emails)
	phone := firstContactValue(person.Phones)
	address := firstAddress(person.Addresses)

	emailNormalized := normalize.Email(email)
	phoneNormalized := normalize.Phone(phone)
	addressNormalized := normalize.Address(address)

	var assignedUserID, assignedUserName, assignedUserEmail *string
	if person.AssignedUserID != nil {
		idStr := fmt.Sprintf("%d", *person.AssignedUserID)
		assignedUserID = &idStr
		if u, ok := userByID[idStr]; ok {
			assignedUserName = &u.Name
			assignedUserEmail = &u.Email
		}
	}

	syncHash := computeSyncHash(email, phone, person.FirstName, person.LastName, person.Stage, assignedUserID, person.UpdatedAt)

	lead := &model.CrmLead{
		TenantID:          tenantID,
		CrmConnectionID:   connectionID,
		ExternalID:        person.ID,
		FirstName:         nonEmptyPtr(person.FirstName),
		LastName:          nonEmptyPtr(person.LastName),
		Email:             nonEmptyPtr(email),
		EmailNormalized:   nonEmptyPtr(emailNormalized),
		Phone:             nonEmptyPtr(phone),
		PhoneNormalized:   nonEmptyPtr(phoneNormalized),
		Address:           nonEmptyPtr(address),
		AddressNormalized: nonEmptyPtr(addressNormalized),
		AssignedUserID:    assignedUserID,
		AssignedUserName:  assignedUserName,
		AssignedUserEmail: assignedUserEmail,
		Stage:             nonEmptyPtr(person.Stage),
		Source:            nonEmptyPtr(person.Source),
		Tags:              person.Tags,
		SyncHash:          syncHash,
	}

	existingHash, existed, err := s.crmLeads.GetSyncHash(ctx, connectionID, person.ID)
	if err != nil {
		return 0, 0, err
	}

	id, changed, err := s.crmLeads.Upsert(ctx, lead)
	if err != nil {
		if pipelineerr.KindOf(err) == pipelineerr.KindPermanentInfra {
			// Malformed upstream record: skip it, don't fail the run.
			return 0, 0, nil
		}
		return 0, 0, err
	}

	if !existed {
		created = 1
	} else if changed && existingHash != syncHash {
		updated = 1
	}

	if !existed || changed {
		if err := s.embeddings.Enqueue(ctx, "crm_leads", id, embeddingTextFor(lead)); err != nil {
			return created, updated, err
		}
	}
	return created, updated, nil
}

func computeSyncHash(email, phone, firstName, lastName, stage string, assignedUserID *string, updatedAt string) string {
	h := sha256.New()
	h.Write([]byte(email))
	h.Write([]byte{0})
	h.Write([]byte(phone))
	h.Write([]byte{0})
	h.Write([]byte(firstName))
	h.Write([]byte{0})
	h.Write([]byte(lastName))
	h.Write([]byte{0})
	h.Write([]byte(stage))
	h.Write([]byte{0})
	if assignedUserID != nil {
		h.Write([]byte(*assignedUserID))
	}
	h.Write([]byte{0})
	h.Write([]byte(updatedAt))
	return hex.EncodeToString(h.Sum(nil))
}

func embeddingTextFor(lead *model.CrmLead) string {
	parts := []string{}
	if lead.FirstName != nil {
		parts = append(parts, *lead.FirstName)
	}
	if lead.LastName != nil {
		parts = append(parts, *lead.LastName)
	}
	if lead.Address != nil {
		parts = append(parts, *lead.Address)
	}
	if lead.Stage != nil {
		parts = append(parts, *lead.Stage)
	}
	text := ""
	for i, p := range parts {
		if i > 0 {
			text += " "
		}
		text += p
	}
	return text
}

func firstContactValue(values []crmclient.ContactValue) string {
	for _, v := range values {
		if v.Value != "" {
			return v.Value
		}
	}
	return ""
}

func firstAddress(values []crmclient.AddressValue) string {
	for _, v := range values {
		if v.Street != "" || v.City != "" || v.State != "" || v.Zip != "" {
			return fmt.Sprintf("%s %s %s %s", v.Street, v.City, v.State, v.Zip)
		}
	}
	return ""
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
