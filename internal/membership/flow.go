package membership

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"member-portal/internal/common/errors"
	"member-portal/internal/common/logger"
	"member-portal/internal/common/metrics"
	"member-portal/internal/common/observability"
	"member-portal/internal/common/validation"
	"member-portal/internal/models"
	"member-portal/internal/session"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Backend is the part of the REST contract the flow calls.
type Backend interface {
	Register(ctx context.Context, reg models.Registration) (string, error)
	VerifyPayment(ctx context.Context, v models.PaymentVerification) error
}

// PaymentProvider creates the hosted subscription the member is sent to.
type PaymentProvider interface {
	CreateSubscription(ctx context.Context, req models.SubscriptionRequest) (*models.SubscriptionResponse, error)
}

// Return URL parameters, as the provider and backend send them.
const (
	ParamPaymentID      = "paymentId"
	ParamPayerID        = "PayerID"
	ParamToken          = "token"
	ParamSubscriptionID = "subscriptionId"
	ParamUserID         = "userId"
	ParamStatus         = "status"
)

var returnParams = []string{ParamPaymentID, ParamPayerID, ParamToken, ParamSubscriptionID, ParamUserID, ParamStatus}

// PlanRequiredMessage is shown when the paid path has no plan selected.
const PlanRequiredMessage = "Please select a membership plan"

type Options struct {
	Backend  Backend
	Provider PaymentProvider
	Plans    *PlanTable
	Records  *session.Enrollment

	ReturnURL      string
	CancelURL      string
	RequireCaptcha bool

	Logger        logger.Logger
	Observability *observability.Observability
}

// Outcome describes where a Submit, Resume or Cancel left the flow.
type Outcome struct {
	State          State  `json:"state"`
	Tier           Tier   `json:"tier,omitempty"`
	UserID         string `json:"userId,omitempty"`
	Plan           string `json:"plan,omitempty"`
	RedirectURL    string `json:"redirectUrl,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	Verified       bool   `json:"verified"`
	Error          string `json:"error,omitempty"`
}

// Flow is the enrollment state machine. It is safe for concurrent use; a
// second Submit or Resume while one is running is rejected.
type Flow struct {
	mu          sync.Mutex
	state       State
	choice      Choice
	plan        Plan
	userID      string
	redirectURL string
	lastErr     error
	busy        bool
	captcha     string

	opts   Options
	logger logger.Logger
	now    func() time.Time
}

func NewFlow(opts Options) (*Flow, error) {
	if opts.Backend == nil || opts.Provider == nil {
		return nil, fmt.Errorf("backend and payment provider are required")
	}
	if opts.Plans == nil {
		return nil, fmt.Errorf("plan table is required")
	}
	if opts.Records == nil {
		return nil, fmt.Errorf("enrollment records store is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	f := &Flow{
		state:  StateIdle,
		opts:   opts,
		logger: opts.Logger.Named("enrollment"),
		now:    time.Now,
	}
	if opts.RequireCaptcha {
		f.captcha = newCaptchaCode()
	}
	return f, nil
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Selection returns the remembered choice and plan.
func (f *Flow) Selection() (Choice, Plan) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.choice, f.plan
}

// Tier derives the tier from the remembered selection.
func (f *Flow) Tier() Tier {
	f.mu.Lock()
	defer f.mu.Unlock()
	return DeriveTier(f.choice, f.plan)
}

// LastError is the error captured by the most recent failed step.
func (f *Flow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// UserID is the id assigned by the last successful signup.
func (f *Flow) UserID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID
}

// RedirectURL is where the member must go while awaiting payment.
func (f *Flow) RedirectURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.redirectURL
}

// Captcha returns the code the member must type, or "" when not required.
func (f *Flow) Captcha() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captcha
}

// setState must be called with f.mu held.
func (f *Flow) setState(to State) error {
	from := f.state
	if !canTransition(from, to) {
		return errors.NewInvalidTransitionError(string(from), string(to))
	}
	f.state = to
	metrics.EnrollmentTransitions.WithLabelValues(string(from), string(to)).Inc()
	f.logger.Debug("Enrollment transition", map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
	return nil
}

// revertSubmission returns a failed submission to PlanChosen. It is the only
// way out of SubmittingSignup that bypasses the transition table. Must be
// called with f.mu held.
func (f *Flow) revertSubmission() {
	from := f.state
	f.state = StatePlanChosen
	metrics.EnrollmentTransitions.WithLabelValues(string(from), string(StatePlanChosen)).Inc()
	f.logger.Debug("Enrollment submission reverted", map[string]interface{}{"from": string(from)})
}

func (f *Flow) choose(choice Choice, plan Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy || f.state == StateSubmittingSignup {
		return errors.NewSubmissionInProgressError()
	}
	if err := f.setState(StatePlanChosen); err != nil {
		return err
	}
	f.choice = choice
	f.plan = plan
	f.lastErr = nil
	return nil
}

// ChooseFree selects the free membership. No plan lookup happens.
func (f *Flow) ChooseFree() error {
	return f.choose(ChoiceFree, PlanUnknown)
}

// ChooseMember selects the paid path without a plan yet.
func (f *Flow) ChooseMember() error {
	return f.choose(ChoicePaid, PlanUnknown)
}

// ChoosePlan selects a paid plan. The plan must resolve in the plan table.
func (f *Flow) ChoosePlan(p Plan) error {
	if _, err := f.opts.Plans.RemoteID(p); err != nil {
		f.mu.Lock()
		f.lastErr = err
		f.mu.Unlock()
		f.logger.Error("Plan does not resolve to a provider plan", map[string]interface{}{
			"plan": p.String(),
		})
		return err
	}
	return f.choose(ChoicePaid, p)
}

// Submit validates form and registers the member. Free members are done
// immediately; paid members get a redirect URL to the payment provider.
func (f *Flow) Submit(ctx context.Context, form validation.SignupForm) (*Outcome, error) {
	f.mu.Lock()
	if f.state == StateSubmittingSignup || f.busy {
		f.mu.Unlock()
		return nil, errors.NewSubmissionInProgressError()
	}
	if f.state != StatePlanChosen {
		from := f.state
		f.mu.Unlock()
		return nil, errors.NewInvalidTransitionError(string(from), string(StateSubmittingSignup))
	}

	choice, plan := f.choice, f.plan
	vr := validation.ValidateSignup(form)
	if choice == ChoicePaid && !plan.Valid() {
		vr.Add("plan", validation.CodePlanRequired, PlanRequiredMessage)
	}
	if f.captcha != "" && !validation.CaptchaMatches(form.Captcha, f.captcha) {
		vr.Add("captcha", validation.CodeCaptchaMismatch, "Captcha does not match")
		f.captcha = newCaptchaCode()
	}
	if !vr.Valid {
		f.lastErr = vr
		f.mu.Unlock()
		return nil, vr
	}

	var remoteID string
	if choice == ChoicePaid {
		id, err := f.opts.Plans.RemoteID(plan)
		if err != nil {
			f.lastErr = err
			f.mu.Unlock()
			return nil, err
		}
		remoteID = id
	}
	if err := f.setState(StateSubmittingSignup); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.busy = true
	f.mu.Unlock()

	tier := DeriveTier(choice, plan)
	ctx, span := f.opts.Observability.StartSpan(ctx, "enrollment.submit",
		attribute.String("tier", string(tier)),
		attribute.String("plan", plan.String()),
	)
	defer span.End()

	out, err := f.submit(ctx, form, tier, plan, remoteID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		span.RecordError(err)
		f.lastErr = err
		f.revertSubmission()
		f.logger.Warn("Signup failed", map[string]interface{}{
			"tier":  string(tier),
			"error": err.Error(),
		})
		return nil, err
	}
	if err := f.setState(out.State); err != nil {
		span.RecordError(err)
		f.lastErr = err
		f.logger.Error("Signup finished in an unexpected state", map[string]interface{}{
			"userId": out.UserID,
			"error":  err.Error(),
		})
		return nil, err
	}
	f.lastErr = nil
	f.userID = out.UserID
	f.redirectURL = out.RedirectURL
	if out.State == StateResumedSuccess {
		f.opts.Observability.RecordResolution(ctx, "success", string(tier))
	}
	return out, nil
}

func (f *Flow) submit(ctx context.Context, form validation.SignupForm, tier Tier, plan Plan, remoteID string) (*Outcome, error) {
	reg := models.Registration{
		FirstName:      strings.TrimSpace(form.FirstName),
		LastName:       strings.TrimSpace(form.LastName),
		Email:          strings.TrimSpace(form.Email),
		Password:       form.Password,
		Title:          form.Title,
		Phone:          form.Phone,
		Affiliation:    strings.TrimSpace(form.Affiliation),
		Department:     strings.TrimSpace(form.Department),
		City:           strings.TrimSpace(form.City),
		Country:        strings.TrimSpace(form.Country),
		MembershipType: string(tier),
		PaymentType:    string(PaymentTypeFor(tier)),
	}
	if remoteID != "" {
		reg.PlanID = &remoteID
	}

	userID, err := f.opts.Backend.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		userID = uuid.NewString()
	}

	if tier == TierFree {
		f.logger.Info("Free membership registered", map[string]interface{}{"userId": userID})
		return &Outcome{State: StateResumedSuccess, Tier: tier, UserID: userID}, nil
	}

	pending := models.PendingEnrollment{UserID: userID, Plan: plan.String(), CreatedAt: f.now().UTC()}
	if err := f.opts.Records.SavePending(ctx, pending); err != nil {
		return nil, err
	}

	sub, err := f.opts.Provider.CreateSubscription(ctx, models.SubscriptionRequest{
		PlanID:    remoteID,
		UserID:    userID,
		ReturnURL: f.opts.ReturnURL,
		CancelURL: f.opts.CancelURL,
	})
	if err != nil {
		if clearErr := f.opts.Records.ClearPending(ctx); clearErr != nil {
			f.logger.Warn("Failed to clear pending enrollment", map[string]interface{}{"error": clearErr.Error()})
		}
		return nil, err
	}

	f.logger.Info("Awaiting external payment", map[string]interface{}{
		"userId": userID,
		"plan":   plan.String(),
	})
	return &Outcome{
		State:          StateAwaitingExternalPayment,
		Tier:           tier,
		UserID:         userID,
		Plan:           plan.String(),
		RedirectURL:    sub.ApprovalURL,
		SubscriptionID: sub.SubscriptionID,
	}, nil
}

// ReturnParams holds the recognized return URL parameters. Nil means absent.
type ReturnParams struct {
	PaymentID      *string
	PayerID        *string
	Token          *string
	SubscriptionID *string
	UserID         *string
	Status         *string
}

// ParseReturnParams picks the recognized parameters out of query. Empty
// values count as absent.
func ParseReturnParams(query url.Values) ReturnParams {
	get := func(key string) *string {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			return &v
		}
		return nil
	}
	return ReturnParams{
		PaymentID:      get(ParamPaymentID),
		PayerID:        get(ParamPayerID),
		Token:          get(ParamToken),
		SubscriptionID: get(ParamSubscriptionID),
		UserID:         get(ParamUserID),
		Status:         get(ParamStatus),
	}
}

func (p ReturnParams) hasPaymentIDs() bool {
	return p.PaymentID != nil || p.PayerID != nil || p.Token != nil || p.SubscriptionID != nil
}

func (p ReturnParams) empty() bool {
	return !p.hasPaymentIDs() && p.UserID == nil && p.Status == nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func failedStatus(status string) bool {
	switch strings.ToLower(status) {
	case "cancelled", "canceled", "failed", "failure", "error", "denied":
		return true
	}
	return false
}

func (f *Flow) begin(op string, allowed ...State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy || f.state == StateSubmittingSignup {
		return errors.NewSubmissionInProgressError()
	}
	for _, s := range allowed {
		if f.state == s {
			f.busy = true
			return nil
		}
	}
	return errors.NewInvalidTransitionError(string(f.state), op)
}

// resolve finishes a Resume or Cancel. Must not be called with f.mu held.
func (f *Flow) resolve(ctx context.Context, out *Outcome, err error, pending *models.PendingEnrollment) (*Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	f.redirectURL = ""
	f.lastErr = err
	if err != nil {
		out.State = StateResumedFailure
		out.Error = errors.UserMessage(err)
	} else {
		out.State = StateResumedSuccess
	}
	if serr := f.setState(out.State); serr != nil {
		f.logger.Error("Resolution rejected by state machine", map[string]interface{}{
			"userId": out.UserID,
			"error":  serr.Error(),
		})
		f.lastErr = serr
		return nil, serr
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
		if errors.CodeOf(err) == errors.ErrCodePaymentCancelled {
			outcome = "cancelled"
		}
	}
	f.opts.Observability.RecordResolution(ctx, outcome, string(out.Tier))
	if pending != nil {
		f.opts.Observability.RecordRoundTrip(ctx, pending.Since(f.now()), outcome)
	}
	return out, err
}

// tierFor derives the tier from the pending record, falling back to the
// in-memory selection. The return URL never carries tier information.
func (f *Flow) tierFor(pending *models.PendingEnrollment) Tier {
	if pending != nil {
		p, err := ParsePlan(pending.Plan)
		if err == nil {
			return DeriveTier(ChoicePaid, p)
		}
		return ""
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.choice == ChoicePaid {
		return DeriveTier(f.choice, f.plan)
	}
	return ""
}

// Resume resolves the enrollment from the provider's return URL query. The
// pending record is cleared whatever the outcome; provider-side state is not
// touched.
func (f *Flow) Resume(ctx context.Context, query url.Values) (*Outcome, error) {
	if err := f.begin("Resume", StateIdle, StateAwaitingExternalPayment); err != nil {
		return nil, err
	}
	ctx, span := f.opts.Observability.StartSpan(ctx, "enrollment.resume")
	defer span.End()

	pending, perr := f.opts.Records.Pending(ctx)
	if perr != nil {
		f.logger.Warn("Failed to read pending enrollment", map[string]interface{}{"error": perr.Error()})
	}
	defer func() {
		if err := f.opts.Records.ClearPending(ctx); err != nil {
			f.logger.Warn("Failed to clear pending enrollment", map[string]interface{}{"error": err.Error()})
		}
	}()

	params := ParseReturnParams(query)
	out := &Outcome{Tier: f.tierFor(pending)}
	if pending != nil {
		out.UserID = pending.UserID
		out.Plan = pending.Plan
	}
	if out.UserID == "" {
		out.UserID = deref(params.UserID)
	}
	out.SubscriptionID = deref(params.SubscriptionID)

	if params.empty() {
		err := errors.NewInvalidSuccessURLError(query.Encode())
		span.RecordError(err)
		f.logger.Warn("Return URL carries no payment parameters", map[string]interface{}{"userId": out.UserID})
		return f.resolve(ctx, out, err, pending)
	}

	if params.hasPaymentIDs() {
		err := f.opts.Backend.VerifyPayment(ctx, models.PaymentVerification{
			PaymentID:      params.PaymentID,
			PayerID:        params.PayerID,
			Token:          params.Token,
			SubscriptionID: params.SubscriptionID,
		})
		if err != nil {
			verr := errors.NewPaymentVerificationFailedError(err)
			span.RecordError(verr)
			f.logger.Error("Payment verification failed", map[string]interface{}{
				"userId": out.UserID,
				"error":  err.Error(),
			})
			return f.resolve(ctx, out, verr, pending)
		}
		out.Verified = true
	} else if status := deref(params.Status); failedStatus(status) {
		var err error
		if s := strings.ToLower(status); s == "cancelled" || s == "canceled" {
			err = errors.NewPaymentCancelledError()
		} else {
			err = errors.NewPaymentVerificationFailedError(fmt.Errorf("payment status %q", status))
		}
		return f.resolve(ctx, out, err, pending)
	}

	if err := f.opts.Records.MarkSuccess(ctx, out.SubscriptionID); err != nil {
		f.logger.Warn("Failed to record confirmation", map[string]interface{}{"error": err.Error()})
	}
	f.logger.Info("Enrollment payment confirmed", map[string]interface{}{
		"userId":         out.UserID,
		"subscriptionId": out.SubscriptionID,
		"verified":       out.Verified,
	})
	return f.resolve(ctx, out, nil, pending)
}

// Cancel handles a return through the provider's cancel URL.
func (f *Flow) Cancel(ctx context.Context) (*Outcome, error) {
	if err := f.begin("Cancel", StateIdle, StateAwaitingExternalPayment); err != nil {
		return nil, err
	}
	pending, perr := f.opts.Records.Pending(ctx)
	if perr != nil {
		f.logger.Warn("Failed to read pending enrollment", map[string]interface{}{"error": perr.Error()})
	}
	out := &Outcome{Tier: f.tierFor(pending)}
	if pending != nil {
		out.UserID = pending.UserID
		out.Plan = pending.Plan
	}
	if err := f.opts.Records.ClearPending(ctx); err != nil {
		f.logger.Warn("Failed to clear pending enrollment", map[string]interface{}{"error": err.Error()})
	}
	f.logger.Info("Payment cancelled by member", map[string]interface{}{"userId": out.UserID})
	return f.resolve(ctx, out, errors.NewPaymentCancelledError(), pending)
}

// ConsumeConfirmation returns the one-shot success flags and deletes them.
func (f *Flow) ConsumeConfirmation(ctx context.Context) (session.Confirmation, error) {
	return f.opts.Records.ConsumeConfirmation(ctx)
}

// Reset returns to Idle and forgets the selection.
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy || f.state == StateSubmittingSignup {
		return errors.NewSubmissionInProgressError()
	}
	if f.state != StateIdle {
		if err := f.setState(StateIdle); err != nil {
			return err
		}
	}
	f.choice = ChoiceNone
	f.plan = PlanUnknown
	f.userID = ""
	f.redirectURL = ""
	f.lastErr = nil
	if f.opts.RequireCaptcha {
		f.captcha = newCaptchaCode()
	}
	return nil
}
