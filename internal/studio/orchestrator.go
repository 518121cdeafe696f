// Package studio runs the credit-gated generation workflow behind the studio screen.
package studio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/prelook/internal/config"
	"github.com/digkill/prelook/internal/gateway"
	"github.com/digkill/prelook/internal/lock"
	"github.com/digkill/prelook/internal/metrics"
	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/prompt"
	"github.com/digkill/prelook/internal/repository"
	"github.com/digkill/prelook/internal/service"
	"github.com/digkill/prelook/internal/storage"
)

// Ledger is the part of the credit ledger the studio charges against.
type Ledger interface {
	Balance(ctx context.Context, email string) (int, error)
	Charge(ctx context.Context, email string, amount int, reason string, record func(ctx context.Context, tx *sql.Tx) error) (int, error)
}

// SessionLog persists generated sessions.
type SessionLog interface {
	SaveTx(ctx context.Context, q repository.DBTX, email string, session *models.HistorySession) error
	Get(ctx context.Context, email, id string) (*models.HistorySession, error)
}

// Publisher fans studio events out to the account's live connections.
type Publisher interface {
	Publish(email string, v any)
}

type Options struct {
	FrontViewCost      int
	UnlockCost         int
	Timeout            time.Duration
	MissingAnglePolicy string
}

const (
	EventPhotoSelected   = "photo_selected"
	EventGenerating      = "generating"
	EventGenerated       = "generated"
	EventUnlocking       = "unlocking"
	EventUnlocked        = "unlocked"
	EventFailed          = "failed"
	EventHistoryMoved    = "history_moved"
	EventSessionLoaded   = "session_loaded"
	EventWorkspaceClosed = "reset"
)

type Event struct {
	Type  string `json:"type"`
	State *State `json:"state"`
}

// State is a snapshot of a workspace for rendering.
type State struct {
	SourceImage   string                   `json:"sourceImage,omitempty"`
	Images        *models.GeneratedImages  `json:"images"`
	SessionID     string                   `json:"sessionId,omitempty"`
	PromptSummary string                   `json:"promptSummary,omitempty"`
	Config        *models.GenerationConfig `json:"config,omitempty"`
	Loading       bool                     `json:"loading"`
	Unlocking     bool                     `json:"unlocking"`
	Error         string                   `json:"error,omitempty"`
	CanUndo       bool                     `json:"canUndo"`
	CanRedo       bool                     `json:"canRedo"`
	Unlocked      bool                     `json:"unlocked"`
	CanUnlock     bool                     `json:"canUnlock"`
	MissingAngles []models.Angle           `json:"missingAngles,omitempty"`
	Credits       int                      `json:"credits"`
}

type Orchestrator struct {
	gateway    gateway.Gateway
	ledger     Ledger
	history    SessionLog
	store      storage.ImageStore
	locker     lock.Locker
	workspaces *Manager
	publisher  Publisher
	opts       Options
	log        *slog.Logger
	now        func() time.Time
	fetch      func(ctx context.Context, ref string) ([]byte, string, error)
}

func New(gw gateway.Gateway, ledger Ledger, history SessionLog, store storage.ImageStore, locker lock.Locker, opts Options, log *slog.Logger) *Orchestrator {
	if opts.FrontViewCost <= 0 {
		opts.FrontViewCost = 1
	}
	if opts.UnlockCost <= 0 {
		opts.UnlockCost = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Minute
	}
	if opts.MissingAnglePolicy == "" {
		opts.MissingAnglePolicy = config.MissingAngleEmpty
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Orchestrator{
		gateway:    gw,
		ledger:     ledger,
		history:    history,
		store:      store,
		locker:     locker,
		workspaces: NewManager(),
		opts:       opts,
		log:        log,
		now:        time.Now,
		fetch:      storage.Fetch,
	}
}

func (o *Orchestrator) SetPublisher(p Publisher) {
	o.publisher = p
}

// SelectPhoto stores the uploaded photo and starts a fresh workspace around it.
func (o *Orchestrator) SelectPhoto(ctx context.Context, email string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", storage.ErrEmptyImage
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: unsupported content type %q", storage.ErrInvalidImage, contentType)
	}

	ws := o.workspaces.Get(email)
	ws.mu.Lock()
	busy := ws.busy()
	ws.mu.Unlock()
	if busy {
		return "", ErrBusy
	}

	ref, err := o.store.Put(ctx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}

	ws.mu.Lock()
	if ws.busy() {
		ws.mu.Unlock()
		return "", ErrBusy
	}
	ws.clear()
	ws.sourceRef = ref
	ws.source = &gateway.Image{Data: data, MIMEType: contentType}
	if isRemote(ref) {
		ws.source.URL = ref
	}
	ws.mu.Unlock()

	o.publish(ctx, email, EventPhotoSelected)
	return ref, nil
}

// GenerateFrontView renders the selected photo with cfg. Credits are only
// debited once the image exists and the session is recorded.
func (o *Orchestrator) GenerateFrontView(ctx context.Context, email string, cfg models.GenerationConfig) (models.GeneratedImages, error) {
	if err := prompt.Validate(cfg); err != nil {
		return models.GeneratedImages{}, err
	}

	ws := o.workspaces.Get(email)
	ws.mu.Lock()
	if ws.busy() {
		ws.mu.Unlock()
		metrics.ObserveGeneration("front", "rejected", 0)
		return models.GeneratedImages{}, ErrBusy
	}
	if ws.sourceRef == "" {
		ws.mu.Unlock()
		return models.GeneratedImages{}, ErrNoSourceImage
	}
	sourceRef := ws.sourceRef
	ws.loading = true
	ws.lastError = ""
	ws.mu.Unlock()
	defer ws.settle()

	release, err := o.acquire(ctx, email)
	if err != nil {
		return models.GeneratedImages{}, err
	}
	defer release()

	if err := o.ensureBalance(ctx, email, o.opts.FrontViewCost); err != nil {
		metrics.ObserveGeneration("front", "rejected", 0)
		return models.GeneratedImages{}, err
	}

	o.publish(ctx, email, EventGenerating)
	stylePrompt := prompt.Build(cfg)
	started := time.Now()
	result, err := o.frontView(ctx, ws, sourceRef, stylePrompt)
	if err != nil {
		metrics.ObserveGeneration("front", "failed", time.Since(started))
		genErr := &GenerationError{Op: "front view", Message: frontFailedMessage, Err: err}
		o.fail(ctx, ws, email, genErr)
		return models.GeneratedImages{}, genErr
	}

	session := &models.HistorySession{
		ID:            uuid.NewString(),
		Timestamp:     o.now().UTC(),
		OriginalImage: sourceRef,
		ResultImages:  result,
		PromptSummary: stylePrompt,
		Config:        cfg,
	}
	balance, err := o.ledger.Charge(ctx, email, o.opts.FrontViewCost, "Front view: "+prompt.Summary(cfg), func(ctx context.Context, tx *sql.Tx) error {
		return o.history.SaveTx(ctx, tx, email, session)
	})
	if err != nil {
		metrics.ObserveGeneration("front", "failed", time.Since(started))
		o.fail(ctx, ws, email, err)
		return models.GeneratedImages{}, fmt.Errorf("record front view: %w", err)
	}
	metrics.ObserveGeneration("front", "ok", time.Since(started))
	metrics.CreditsSpent("front", o.opts.FrontViewCost)

	ws.mu.Lock()
	ws.stack.Push(session)
	ws.loading = false
	ws.lastError = ""
	ws.mu.Unlock()

	o.log.Info("front view generated", "email", email, "session_id", session.ID, "balance", balance)
	o.publish(ctx, email, EventGenerated)
	return result, nil
}

func (o *Orchestrator) frontView(ctx context.Context, ws *Workspace, sourceRef, stylePrompt string) (models.GeneratedImages, error) {
	gctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	src, err := o.source(gctx, ws, sourceRef)
	if err != nil {
		return models.GeneratedImages{}, err
	}
	out, err := gateway.FrontView(gctx, o.gateway, src, stylePrompt)
	if err != nil {
		return models.GeneratedImages{}, err
	}
	ref, err := o.imageRef(ctx, out)
	if err != nil {
		return models.GeneratedImages{}, err
	}
	return models.GeneratedImages{Front: &ref}, nil
}

// UnlockRemainingViews renders the left, right and back views of the session
// on screen and merges whatever came back into it.
func (o *Orchestrator) UnlockRemainingViews(ctx context.Context, email string) (models.GeneratedImages, error) {
	ws := o.workspaces.Get(email)
	ws.mu.Lock()
	if ws.busy() {
		ws.mu.Unlock()
		metrics.ObserveGeneration("unlock", "rejected", 0)
		return models.GeneratedImages{}, ErrBusy
	}
	current := ws.session()
	if current == nil || current.ResultImages.Front == nil {
		ws.mu.Unlock()
		return models.GeneratedImages{}, ErrNoActiveSession
	}
	angles, err := o.unlockAngles(current)
	if err != nil {
		ws.mu.Unlock()
		return models.GeneratedImages{}, err
	}
	session := cloneSession(current)
	sourceRef := ws.sourceRef
	if sourceRef == "" {
		sourceRef = session.OriginalImage
	}
	ws.unlocking = true
	ws.lastError = ""
	ws.mu.Unlock()
	defer ws.settle()

	release, err := o.acquire(ctx, email)
	if err != nil {
		return models.GeneratedImages{}, err
	}
	defer release()

	// A session removed from history since it was opened is not revived.
	if _, err := o.history.Get(ctx, email, session.ID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return models.GeneratedImages{}, ErrNoActiveSession
		}
		return models.GeneratedImages{}, err
	}

	if err := o.ensureBalance(ctx, email, o.opts.UnlockCost); err != nil {
		metrics.ObserveGeneration("unlock", "rejected", 0)
		return models.GeneratedImages{}, err
	}

	o.publish(ctx, email, EventUnlocking)
	started := time.Now()
	merged, err := o.remainingViews(ctx, ws, sourceRef, session, angles)
	if err != nil {
		metrics.ObserveGeneration("unlock", "failed", time.Since(started))
		genErr := &GenerationError{Op: "unlock", Message: unlockFailedMessage, Err: err}
		o.fail(ctx, ws, email, genErr)
		return models.GeneratedImages{}, genErr
	}

	missing := merged.Missing()
	for _, a := range missing {
		metrics.MissingAngle(string(a))
	}
	session.ResultImages = merged
	session.UnlockedAngles = true
	session.MissingAngles = missing

	balance, err := o.ledger.Charge(ctx, email, o.opts.UnlockCost, "Unlock 360° views: "+prompt.Summary(session.Config), func(ctx context.Context, tx *sql.Tx) error {
		return o.history.SaveTx(ctx, tx, email, session)
	})
	if err != nil {
		metrics.ObserveGeneration("unlock", "failed", time.Since(started))
		o.fail(ctx, ws, email, err)
		return models.GeneratedImages{}, fmt.Errorf("record unlock: %w", err)
	}
	metrics.ObserveGeneration("unlock", "ok", time.Since(started))
	metrics.CreditsSpent("unlock", o.opts.UnlockCost)

	ws.mu.Lock()
	ws.stack.Replace(session)
	ws.unlocking = false
	ws.lastError = ""
	ws.mu.Unlock()

	o.log.Info("views unlocked", "email", email, "session_id", session.ID, "missing", missing, "balance", balance)
	o.publish(ctx, email, EventUnlocked)
	return merged, nil
}

// remainingViews returns the session's images with every usable angle filled in.
// Zero usable angles is a failure so the user is never charged for nothing.
func (o *Orchestrator) remainingViews(ctx context.Context, ws *Workspace, sourceRef string, session *models.HistorySession, angles []models.Angle) (models.GeneratedImages, error) {
	gctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	src, err := o.source(gctx, ws, sourceRef)
	if err != nil {
		return models.GeneratedImages{}, err
	}
	views, err := gateway.RemainingViews(gctx, o.gateway, src, prompt.Build(session.Config), angles, o.log)
	if err != nil {
		return models.GeneratedImages{}, err
	}

	merged := session.ResultImages
	usable := 0
	for _, angle := range angles {
		view := views[angle]
		if view == nil {
			continue
		}
		ref, err := o.imageRef(ctx, view)
		if err != nil {
			o.log.Warn("store angle failed", "angle", angle, "err", err)
			continue
		}
		merged.Set(angle, &ref)
		usable++
	}
	if usable == 0 {
		return models.GeneratedImages{}, gateway.ErrNoImage
	}
	return merged, nil
}

// unlockAngles picks the angles an unlock of session would render.
func (o *Orchestrator) unlockAngles(session *models.HistorySession) ([]models.Angle, error) {
	if !session.UnlockedAngles {
		return slices.Clone(models.RemainingAngles), nil
	}
	missing := session.ResultImages.Missing()
	if o.opts.MissingAnglePolicy == config.MissingAngleRelock && len(missing) > 0 {
		return missing, nil
	}
	return nil, ErrAlreadyUnlocked
}

// Undo steps back one result and makes its session the one on screen. It
// never calls the gateway.
func (o *Orchestrator) Undo(ctx context.Context, email string) (models.GeneratedImages, bool) {
	return o.move(ctx, email, (*Stack).Undo)
}

func (o *Orchestrator) Redo(ctx context.Context, email string) (models.GeneratedImages, bool) {
	return o.move(ctx, email, (*Stack).Redo)
}

func (o *Orchestrator) move(ctx context.Context, email string, step func(*Stack) (*models.HistorySession, bool)) (models.GeneratedImages, bool) {
	ws := o.workspaces.Get(email)
	ws.mu.Lock()
	ok := false
	if !ws.busy() {
		_, ok = step(ws.stack)
	}
	images := imagesOf(ws.session())
	ws.mu.Unlock()

	if ok {
		o.publish(ctx, email, EventHistoryMoved)
	}
	return images, ok
}

// LoadSession reopens a saved session as the only entry of a fresh stack.
func (o *Orchestrator) LoadSession(ctx context.Context, email, id string) (*models.HistorySession, error) {
	session, err := o.history.Get(ctx, email, id)
	if err != nil {
		return nil, err
	}

	ws := o.workspaces.Get(email)
	ws.mu.Lock()
	if ws.busy() {
		ws.mu.Unlock()
		return nil, ErrBusy
	}
	ws.clear()
	ws.sourceRef = session.OriginalImage
	ws.stack.Seed(session)
	ws.mu.Unlock()

	o.publish(ctx, email, EventSessionLoaded)
	return session, nil
}

// Reset closes the photo and its history.
func (o *Orchestrator) Reset(ctx context.Context, email string) error {
	ws := o.workspaces.Get(email)
	ws.mu.Lock()
	if ws.busy() {
		ws.mu.Unlock()
		return ErrBusy
	}
	ws.clear()
	ws.mu.Unlock()

	o.publish(ctx, email, EventWorkspaceClosed)
	return nil
}

// Forget drops the workspace entirely, e.g. on logout.
func (o *Orchestrator) Forget(email string) {
	o.workspaces.Drop(email)
}

func (o *Orchestrator) State(ctx context.Context, email string) (*State, error) {
	ws := o.workspaces.Get(email)
	ws.mu.Lock()
	st := &State{
		SourceImage: ws.sourceRef,
		Loading:     ws.loading,
		Unlocking:   ws.unlocking,
		Error:       ws.lastError,
		CanUndo:     ws.stack.CanUndo(),
		CanRedo:     ws.stack.CanRedo(),
	}
	if s := ws.session(); s != nil {
		images := s.ResultImages
		cfg := s.Config
		st.Images = &images
		st.Config = &cfg
		st.SessionID = s.ID
		st.PromptSummary = prompt.Summary(s.Config)
		st.Unlocked = s.UnlockedAngles
		st.MissingAngles = slices.Clone(s.MissingAngles)
		if s.ResultImages.Front != nil {
			_, err := o.unlockAngles(s)
			st.CanUnlock = err == nil
		}
	}
	ws.mu.Unlock()

	balance, err := o.ledger.Balance(ctx, email)
	if err != nil {
		return nil, err
	}
	st.Credits = balance
	return st, nil
}

func (o *Orchestrator) acquire(ctx context.Context, email string) (func(), error) {
	release, err := o.locker.TryLock(ctx, "studio:"+email)
	if errors.Is(err, lock.ErrHeld) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("acquire studio lock: %w", err)
	}
	return release, nil
}

func (o *Orchestrator) ensureBalance(ctx context.Context, email string, cost int) error {
	balance, err := o.ledger.Balance(ctx, email)
	if err != nil {
		return err
	}
	if balance < cost {
		return service.ErrInsufficientCredits
	}
	return nil
}

// source returns the photo as gateway input, fetching it once if the
// workspace was reopened from history.
func (o *Orchestrator) source(ctx context.Context, ws *Workspace, ref string) (gateway.Image, error) {
	ws.mu.Lock()
	cached := ws.source
	ws.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	data, contentType, err := o.fetch(ctx, ref)
	if err != nil {
		return gateway.Image{}, fmt.Errorf("load source photo: %w", err)
	}
	img := gateway.Image{Data: data, MIMEType: contentType}
	if isRemote(ref) {
		img.URL = ref
	}

	ws.mu.Lock()
	if ws.sourceRef == ref {
		ws.source = &img
	}
	ws.mu.Unlock()
	return img, nil
}

func (o *Orchestrator) imageRef(ctx context.Context, img *gateway.Image) (string, error) {
	if len(img.Data) == 0 {
		if img.URL == "" {
			return "", gateway.ErrNoImage
		}
		return img.URL, nil
	}
	ref, err := o.store.Put(ctx, img.Data, img.MIMEType)
	if err != nil {
		return "", fmt.Errorf("store generated image: %w", err)
	}
	return ref, nil
}

func (o *Orchestrator) fail(ctx context.Context, ws *Workspace, email string, err error) {
	message := err.Error()
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		message = genErr.Message
	}
	ws.mu.Lock()
	ws.lastError = message
	ws.loading = false
	ws.unlocking = false
	ws.mu.Unlock()

	o.log.Warn("generation failed", "email", email, "err", err)
	o.publish(ctx, email, EventFailed)
}

func (o *Orchestrator) publish(ctx context.Context, email, eventType string) {
	if o.publisher == nil {
		return
	}
	st, err := o.State(ctx, email)
	if err != nil {
		o.log.Warn("studio state for event failed", "email", email, "event", eventType, "err", err)
		return
	}
	o.publisher.Publish(email, Event{Type: eventType, State: st})
}

func cloneSession(s *models.HistorySession) *models.HistorySession {
	out := *s
	out.MissingAngles = slices.Clone(s.MissingAngles)
	return &out
}

func imagesOf(s *models.HistorySession) models.GeneratedImages {
	if s == nil {
		return models.GeneratedImages{}
	}
	return s.ResultImages
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
