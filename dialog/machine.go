package dialog

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-passwordless/dialog/staterepo"
	"github.com/jrsteele09/go-passwordless/events"
	"github.com/jrsteele09/go-passwordless/internal/utils"
	"github.com/jrsteele09/go-passwordless/location"
	"github.com/jrsteele09/go-passwordless/passwordless"
	"github.com/jrsteele09/go-passwordless/phone"
)

// ErrBusy rejects a mutating call made while a previous protocol call is
// still in flight. There is no queuing and no cancellation of the in-flight
// call.
var ErrBusy = errors.New("another operation is in progress")

const defaultAutoCloseDelay = 1200 * time.Millisecond

// Machine owns one dialog's state for the lifetime of a browser tab. All
// mutating operations are serialized by a busy flag; protocol calls for the
// session are therefore strictly sequential, and the session token is only
// ever read from the machine's own latest state.
type Machine struct {
	service *passwordless.Service
	repo    staterepo.Repo
	bus     *events.Bus
	key     string

	messages           passwordless.MessageTable
	methods            []passwordless.Method
	fallbackOTPLength  int
	defaultCountryCode string
	autoCloseDelay     time.Duration
	nowTime            func() time.Time
	onTokens           func(passwordless.Tokens)

	lock       sync.Mutex
	busy       bool
	state      State
	pending    *passwordless.UserProfileAttributes
	restored   bool
	resend     cooldown
	closeTimer *time.Timer
}

// MachineOption modifies a Machine instance.
type MachineOption func(*Machine)

// WithNowTime injects the clock used for the resend cooldown.
func WithNowTime(now func() time.Time) MachineOption {
	return func(m *Machine) {
		m.nowTime = now
	}
}

// WithMessages replaces the provider-error message table.
func WithMessages(table passwordless.MessageTable) MachineOption {
	return func(m *Machine) {
		m.messages = table
	}
}

// WithMethods sets the ordered delivery methods offered by the dialog.
func WithMethods(methods []passwordless.Method) MachineOption {
	return func(m *Machine) {
		if len(methods) > 0 {
			m.methods = methods
		}
	}
}

// WithFallbackOTPLength sets the code length assumed when the provider sends
// no usable hint.
func WithFallbackOTPLength(length int) MachineOption {
	return func(m *Machine) {
		m.fallbackOTPLength = length
	}
}

// WithDefaultCountryCode sets the country code assumed for bare national
// phone numbers.
func WithDefaultCountryCode(code string) MachineOption {
	return func(m *Machine) {
		m.defaultCountryCode = code
	}
}

// WithAutoCloseDelay sets how long the success step stays visible before the
// dialog closes itself.
func WithAutoCloseDelay(delay time.Duration) MachineOption {
	return func(m *Machine) {
		m.autoCloseDelay = delay
	}
}

// WithOnTokens registers the sink that receives issued tokens. Tokens are
// never persisted in the dialog snapshot.
func WithOnTokens(sink func(passwordless.Tokens)) MachineOption {
	return func(m *Machine) {
		m.onTokens = sink
	}
}

// NewMachine creates the dialog state machine for one tab key.
func NewMachine(service *passwordless.Service, repo staterepo.Repo, bus *events.Bus, key string, options ...MachineOption) (*Machine, error) {
	if service == nil {
		return nil, errors.New("[NewMachine] service is required")
	}
	if repo == nil {
		return nil, errors.New("[NewMachine] repo is required")
	}
	if bus == nil {
		return nil, errors.New("[NewMachine] bus is required")
	}

	m := &Machine{
		service:            service,
		repo:               repo,
		bus:                bus,
		key:                key,
		messages:           passwordless.DefaultMessages(),
		methods:            ResolveMethods(""),
		fallbackOTPLength:  DefaultOTPLength,
		defaultCountryCode: "1",
		autoCloseDelay:     defaultAutoCloseDelay,
		nowTime:            time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	m.resend = newCooldown(ResendCooldown, m.nowTime)
	m.state.SelectedMethod = m.methods[0]
	return m, nil
}

// begin claims the busy flag, rejecting re-entrant mutating calls outright.
func (m *Machine) begin() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.busy {
		return ErrBusy
	}
	m.busy = true
	return nil
}

func (m *Machine) end() {
	m.lock.Lock()
	m.busy = false
	m.lock.Unlock()
}

func (m *Machine) withLock(fn func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	fn()
}

// State returns a copy of the current dialog state with derived validation
// fields attached.
func (m *Machine) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()

	state := m.state
	state.Loading = m.busy
	state.ResendSecondsLeft = m.resend.SecondsLeft()
	state.ExpectedCodeLength = ExpectedCodeLength(m.state.Session, m.fallbackOTPLength)
	state.AllowedCodeLengths = AllowedCodeLengths(state.ExpectedCodeLength, m.fallbackOTPLength)
	return state
}

// Open shows the dialog on the email step.
func (m *Machine) Open(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.withLock(func() {
		m.state.IsOpen = true
		if m.state.Step == StepClosed {
			m.state.Step = StepEmail
		}
	})
	m.persist(ctx, staterepo.Partial{
		IsOpen: utils.Ptr(true),
		Step:   utils.Ptr(string(m.currentStep())),
	})
	return nil
}

// Close hides the dialog and discards the snapshot. The resend countdown dies
// with the dialog.
func (m *Machine) Close(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.reset()
	if err := m.repo.Clear(ctx, m.key); err != nil {
		log.Warn().Err(err).Str("key", m.key).Msg("failed to clear dialog snapshot")
	}
	return nil
}

// ClearSession drops the in-flight auth session and snapshot but keeps the
// dialog open on the email step.
func (m *Machine) ClearSession(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.withLock(func() {
		open := m.state.IsOpen
		m.state = State{IsOpen: open, SelectedMethod: m.methods[0]}
		if open {
			m.state.Step = StepEmail
		}
		m.pending = nil
		m.resend.Stop()
	})
	if err := m.repo.Clear(ctx, m.key); err != nil {
		log.Warn().Err(err).Str("key", m.key).Msg("failed to clear dialog snapshot")
	}
	return nil
}

// SetEmail records the typed email address.
func (m *Machine) SetEmail(email string) {
	m.withLock(func() { m.state.Email = email })
}

// SetPhone records the typed phone number for SMS delivery.
func (m *Machine) SetPhone(phoneNumber string) {
	m.withLock(func() { m.state.Phone = phoneNumber })
}

// SetProfile records the typed profile fields.
func (m *Machine) SetProfile(profilePhone, profileLocation string) {
	m.withLock(func() {
		m.state.ProfilePhone = profilePhone
		m.state.ProfileLocation = profileLocation
	})
}

// SetCode records typed code digits. The digits are persisted so a resumed
// session does not lose a half-typed code.
func (m *Machine) SetCode(ctx context.Context, code string) {
	m.withLock(func() { m.state.Code = code })
	m.persist(ctx, staterepo.Partial{Code: utils.Ptr(code)})
}

// SwitchMethod changes the delivery channel. The in-flight challenge is
// invalidated by changing channel, so code, phone and session reset and the
// dialog returns to the email step.
func (m *Machine) SwitchMethod(ctx context.Context, raw string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	method := NormalizeMethod(raw, m.methods)
	m.withLock(func() {
		m.state.SelectedMethod = method
		m.state.Code = ""
		m.state.Phone = ""
		m.state.Session = nil
		m.state.Step = StepEmail
		m.state.Status = nil
		m.resend.Stop()
	})
	m.persist(ctx, staterepo.Partial{
		Step:           utils.Ptr(string(StepEmail)),
		Code:           utils.Ptr(""),
		Phone:          utils.Ptr(""),
		ClearSession:   true,
		SelectedMethod: utils.Ptr(string(method)),
	})
	return nil
}

// SubmitEmail starts authentication for the typed email address.
func (m *Machine) SubmitEmail(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	var email, rawPhone string
	var method passwordless.Method
	m.withLock(func() {
		email = m.state.Email
		rawPhone = m.state.Phone
		method = m.state.SelectedMethod
	})
	if email == "" {
		return nil
	}

	normalizedPhone := ""
	if method == passwordless.MethodSMSOTP {
		normalizedPhone = phone.FormatE164(rawPhone, m.defaultCountryCode)
		if normalizedPhone == "" {
			m.setStatus(ToneError, "Enter a phone number with country code, e.g. +1 5551234567.")
			return nil
		}
	}

	m.setStatus(ToneInfo, CopyFor(method).Sending)

	session, err := m.service.StartAuth(ctx, email, passwordless.StartOptions{
		PreferredChallenge: method,
		PhoneNumber:        normalizedPhone,
	})
	if err != nil {
		log.Error().Err(err).Msg("start auth failed")
		m.setStatus(ToneError, m.messages.Lookup(err))
		return nil
	}

	if session.Tokens != nil {
		// The provider short-circuited straight to tokens.
		m.succeed(ctx, *session.Tokens)
		return nil
	}

	if session.ChallengeName == passwordless.ChallengeConfirmSignUp {
		m.withLock(func() {
			m.state.Session = session
			m.state.Step = StepCode
			m.resend.Start()
		})
		m.setStatus(ToneSuccess, "Account created! Check your email for the verification code.")
		m.persist(ctx, staterepo.Partial{
			IsOpen:         utils.Ptr(true),
			Step:           utils.Ptr(string(StepCode)),
			Email:          utils.Ptr(email),
			Phone:          utils.Ptr(rawPhone),
			Session:        session,
			SelectedMethod: utils.Ptr(string(method)),
		})
		return nil
	}

	resolved := m.resolveMethod(session)
	m.withLock(func() {
		m.state.Session = session
		m.state.SelectedMethod = resolved
		m.state.Step = StepCode
		m.resend.Start()
	})
	m.setStatus(ToneSuccess, CopyFor(resolved).SendSuccess)
	m.persist(ctx, staterepo.Partial{
		IsOpen:         utils.Ptr(true),
		Step:           utils.Ptr(string(StepCode)),
		Email:          utils.Ptr(email),
		Phone:          utils.Ptr(rawPhone),
		Session:        session,
		SelectedMethod: utils.Ptr(string(resolved)),
	})
	return nil
}

// ConfirmCode submits the typed code against the live session.
func (m *Machine) ConfirmCode(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	var session *passwordless.AuthSession
	var code string
	m.withLock(func() {
		session = m.state.Session
		code = m.state.Code
	})
	if session == nil || code == "" {
		return nil
	}
	if !CodeLengthAllowed(code, session, m.fallbackOTPLength) {
		m.setStatus(ToneError, "Enter the complete verification code.")
		return nil
	}

	m.setStatus(ToneInfo, "Verifying code...")

	result, err := m.service.ConfirmAuth(ctx, session, code)
	if err != nil {
		log.Error().Err(err).Msg("confirm code failed")
		m.setStatus(ToneError, confirmFailureText(err))
		return nil
	}

	switch {
	case result.Tokens != nil:
		m.applyPendingProfile(ctx, result.Tokens.AccessToken)
		m.succeed(ctx, *result.Tokens)

	case result.NeedsProfileCompletion && result.NextSession != nil:
		m.withLock(func() {
			m.state.Session = result.NextSession
			m.state.Code = ""
			m.state.Step = StepProfile
		})
		m.setStatus(ToneSuccess, "Account verified! Let's complete your profile (optional).")
		m.persist(ctx, staterepo.Partial{
			Step:    utils.Ptr(string(StepProfile)),
			Code:    utils.Ptr(""),
			Session: result.NextSession,
		})

	case result.NextSession != nil:
		resolved := m.resolveMethod(result.NextSession)
		m.withLock(func() {
			m.state.Session = result.NextSession
			m.state.Code = ""
			m.state.SelectedMethod = resolved
			m.resend.Start()
		})
		m.setStatus(ToneSuccess, verifiedCopy(resolved))
		m.persist(ctx, staterepo.Partial{
			Code:           utils.Ptr(""),
			Session:        result.NextSession,
			SelectedMethod: utils.Ptr(string(resolved)),
		})
	}
	return nil
}

// Resend requests a fresh code. While the cooldown is active the call is a
// deliberate no-op.
func (m *Machine) Resend(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	var session *passwordless.AuthSession
	var method passwordless.Method
	cooldownActive := false
	m.withLock(func() {
		session = m.state.Session
		method = m.state.SelectedMethod
		cooldownActive = m.resend.Active()
	})
	if session == nil || cooldownActive {
		return nil
	}

	m.setStatus(ToneInfo, CopyFor(method).Sending)

	next, err := m.service.ResendCode(ctx, session)
	if err != nil {
		log.Error().Err(err).Msg("resend code failed")
		m.setStatus(ToneError, "We couldn't resend the code. Try again in a moment.")
		return nil
	}

	resolved := m.resolveMethod(next)
	m.withLock(func() {
		m.state.Session = next
		m.state.SelectedMethod = resolved
		m.resend.Start()
	})
	m.setStatus(ToneSuccess, CopyFor(resolved).ResendSuccess)
	m.persist(ctx, staterepo.Partial{
		Session:        next,
		SelectedMethod: utils.Ptr(string(resolved)),
	})
	return nil
}

// SubmitProfile validates the optional profile fields, stages them for the
// save that happens after the next successful code confirmation, and requests
// a login code.
func (m *Machine) SubmitProfile(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	var session *passwordless.AuthSession
	var profilePhone, profileLocation string
	m.withLock(func() {
		session = m.state.Session
		profilePhone = m.state.ProfilePhone
		profileLocation = m.state.ProfileLocation
	})
	if session == nil {
		return nil
	}

	formattedPhone := ""
	if profilePhone != "" {
		formattedPhone = phone.FormatE164(profilePhone, m.defaultCountryCode)
		if formattedPhone == "" || !phone.IsValidE164(formattedPhone) {
			m.setStatus(ToneError, "Invalid phone number. Please use format: +1 555 123 4567 or (555) 123-4567")
			return nil
		}
	}

	validLocation := ""
	if profileLocation != "" {
		validLocation = location.Validate(profileLocation)
		if validLocation == "" {
			m.setStatus(ToneError, "Invalid location format. Please use: country/state (e.g., usa/wa, canada/bc)")
			return nil
		}
	}

	var pending *passwordless.UserProfileAttributes
	if formattedPhone != "" || validLocation != "" {
		pending = &passwordless.UserProfileAttributes{
			Phone:    formattedPhone,
			Location: validLocation,
		}
	}

	phoneForAuth := formattedPhone
	if phoneForAuth == "" {
		phoneForAuth = session.PhoneNumber
	}
	if err := m.requestLoginCode(ctx, session, phoneForAuth, pending, func(method passwordless.Method) string {
		if method == passwordless.MethodSMSOTP {
			return "Profile saved! Check your phone for a login code."
		}
		return "Profile saved! Check your email for a login code."
	}); err != nil {
		return err
	}
	return nil
}

// SkipProfile leaves the profile fields empty and requests a login code.
func (m *Machine) SkipProfile(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	var session *passwordless.AuthSession
	m.withLock(func() { session = m.state.Session })
	if session == nil {
		return nil
	}

	return m.requestLoginCode(ctx, session, session.PhoneNumber, nil, func(method passwordless.Method) string {
		if method == passwordless.MethodSMSOTP {
			return "Check your phone for a login code."
		}
		return "Check your email for a login code."
	})
}

// requestLoginCode restarts authentication after the profile step. Caller
// must hold the busy flag.
func (m *Machine) requestLoginCode(ctx context.Context, session *passwordless.AuthSession, phoneNumber string, pending *passwordless.UserProfileAttributes, successText func(passwordless.Method) string) error {
	email := session.Email
	if email == "" {
		email = session.Username
	}

	next, err := m.service.StartAuth(ctx, email, passwordless.StartOptions{
		PreferredChallenge: session.PreferredChallenge,
		PhoneNumber:        phoneNumber,
	})
	if err != nil {
		log.Error().Err(err).Msg("login code request failed")
		m.setStatus(ToneError, "Something went wrong. Please try again.")
		return nil
	}

	resolved := m.resolveMethod(next)
	m.withLock(func() {
		if pending != nil {
			m.pending = pending
		}
		m.state.Session = next
		m.state.Code = ""
		m.state.Step = StepCode
		m.state.SelectedMethod = resolved
		m.resend.Start()
	})
	m.setStatus(ToneSuccess, successText(resolved))
	partial := staterepo.Partial{
		Step:           utils.Ptr(string(StepCode)),
		Code:           utils.Ptr(""),
		Session:        next,
		SelectedMethod: utils.Ptr(string(resolved)),
	}
	if pending != nil {
		partial.PendingProfile = pending
	}
	m.persist(ctx, partial)
	return nil
}

// Restore rehydrates the dialog from its snapshot. It applies once per
// machine lifetime unless force is set (the page regained visibility).
// Restoring onto the code step with a live session announces the resume
// instead of silently continuing.
func (m *Machine) Restore(ctx context.Context, force bool) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	alreadyRestored := false
	m.withLock(func() { alreadyRestored = m.restored })
	if alreadyRestored && !force {
		return nil
	}

	snapshot, err := m.repo.Load(ctx, m.key)
	if err != nil {
		return errors.Wrap(err, "[Machine.Restore] Load")
	}
	if snapshot == nil {
		m.withLock(func() { m.restored = true })
		return nil
	}

	m.withLock(func() {
		m.state.IsOpen = snapshot.IsOpen
		if snapshot.Step != "" {
			m.state.Step = Step(snapshot.Step)
		}
		if snapshot.Email != "" {
			m.state.Email = snapshot.Email
		}
		if snapshot.Code != "" {
			m.state.Code = snapshot.Code
		}
		if snapshot.Phone != "" {
			m.state.Phone = snapshot.Phone
		}
		if snapshot.Session != nil {
			m.state.Session = snapshot.Session
		}
		if snapshot.SelectedMethod != "" {
			m.state.SelectedMethod = NormalizeMethod(snapshot.SelectedMethod, m.methods)
		}
		if snapshot.ProfilePhone != "" {
			m.state.ProfilePhone = snapshot.ProfilePhone
		}
		if snapshot.ProfileLocation != "" {
			m.state.ProfileLocation = snapshot.ProfileLocation
		}
		if snapshot.PendingProfile != nil {
			m.pending = snapshot.PendingProfile
		}
		m.restored = true

		if snapshot.IsOpen && Step(snapshot.Step) == StepCode && snapshot.Session != nil {
			m.state.Status = &StatusMessage{
				Tone: ToneInfo,
				Text: "Welcome back! Enter your code to continue.",
			}
		}
	})
	return nil
}

// applyPendingProfile pushes staged profile fields to the provider once
// tokens exist. Strictly best-effort: a failure here must not roll back the
// sign-in.
func (m *Machine) applyPendingProfile(ctx context.Context, accessToken string) {
	var pending *passwordless.UserProfileAttributes
	m.withLock(func() { pending = m.pending })
	if pending == nil || pending.Empty() || accessToken == "" {
		return
	}

	if err := m.service.UpdateProfileAttributes(ctx, accessToken, *pending); err != nil {
		log.Warn().Err(err).Msg("profile attribute save failed after sign-in")
		return
	}
	m.withLock(func() { m.pending = nil })
	m.persist(ctx, staterepo.Partial{ClearPending: true})
}

// succeed finishes the flow: tokens out, snapshot gone, listeners notified,
// dialog auto-closing after a short delay.
func (m *Machine) succeed(ctx context.Context, tokens passwordless.Tokens) {
	m.withLock(func() {
		m.state.Step = StepSuccess
		m.state.Session = nil
		m.state.Code = ""
		m.state.Status = &StatusMessage{Tone: ToneSuccess, Text: "Success! You're signed in."}
		m.resend.Stop()
	})

	if m.onTokens != nil {
		m.onTokens(tokens)
	}
	m.bus.PublishAuthChanged(true)

	if err := m.repo.Clear(ctx, m.key); err != nil {
		log.Warn().Err(err).Str("key", m.key).Msg("failed to clear dialog snapshot")
	}

	m.withLock(func() {
		if m.closeTimer != nil {
			m.closeTimer.Stop()
		}
		m.closeTimer = time.AfterFunc(m.autoCloseDelay, func() {
			m.withLock(func() {
				if m.state.Step == StepSuccess {
					m.resetLocked()
				}
			})
		})
	})
}

func (m *Machine) reset() {
	m.withLock(func() { m.resetLocked() })
}

// resetLocked returns the dialog to its closed resting state. Caller holds
// the lock.
func (m *Machine) resetLocked() {
	m.state = State{SelectedMethod: m.methods[0]}
	m.pending = nil
	m.resend.Stop()
	if m.closeTimer != nil {
		m.closeTimer.Stop()
		m.closeTimer = nil
	}
}

func (m *Machine) resolveMethod(session *passwordless.AuthSession) passwordless.Method {
	value := string(session.PreferredChallenge)
	if value == "" {
		value = session.ChallengeName.String()
	}
	return NormalizeMethod(value, m.methods)
}

func (m *Machine) currentStep() Step {
	var step Step
	m.withLock(func() { step = m.state.Step })
	return step
}

func (m *Machine) setStatus(tone StatusTone, text string) {
	m.withLock(func() {
		m.state.Status = &StatusMessage{Tone: tone, Text: text}
	})
}

func (m *Machine) persist(ctx context.Context, partial staterepo.Partial) {
	if err := m.repo.Save(ctx, m.key, partial); err != nil {
		log.Warn().Err(err).Str("key", m.key).Msg("failed to save dialog snapshot")
	}
}

func verifiedCopy(method passwordless.Method) string {
	if method == passwordless.MethodSMSOTP {
		return "Account verified! Check your phone for a login code."
	}
	return "Account verified! Check your email for a login code."
}

// confirmFailureText prefers the provider's own message; tokens-absent is the
// one hard error and gets its own fixed sentence.
func confirmFailureText(err error) string {
	if errors.Is(err, passwordless.ErrNoTokens) {
		return "Authentication failed - no tokens returned"
	}
	var pe *passwordless.ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return "That code didn't work. Double-check and try again."
}
