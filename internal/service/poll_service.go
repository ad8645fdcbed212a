package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/observability"
	"Coop_Voting/internal/relay"
	"Coop_Voting/internal/repository/mysql"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	MinPollOptions = 2
	maxTitleLen    = 200
	maxOptionLen   = 200
	publishTimeout = 2 * time.Second
)

type PollService struct {
	polls   *mysql.PollRepository
	votes   *mysql.VoteRepository
	users   *mysql.UserRepository
	coops   *mysql.CooperativeRepository
	relay   relay.Publisher
	metrics *observability.Metrics
	now     func() time.Time
}

type CreatePollInput struct {
	Title       string
	Description string
	ClosesAt    time.Time
	Options     []string
}

// PollPatch 为 nil 的字段不修改
type PollPatch struct {
	Title       *string
	Description *string
	ClosesAt    *time.Time
}

type PollSummary struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	ClosesAt    time.Time `json:"closes_at"`
	IsOpen      bool      `json:"is_open"`
	HasVoted    bool      `json:"has_voted"`
	CreatorID   *uint64   `json:"creator_id"`
}

type PollDetail struct {
	Poll     *model.Poll `json:"poll"`
	IsOpen   bool        `json:"is_open"`
	HasVoted bool        `json:"has_voted"`
	Tally    *Tally      `json:"tally"`
}

func NewPollService(db *gorm.DB, pub relay.Publisher, m *observability.Metrics) *PollService {
	if pub == nil {
		pub = relay.Nop{}
	}
	if m == nil {
		m = observability.NewMetrics(prometheus.NewRegistry())
	}
	return &PollService{
		polls:   &mysql.PollRepository{DB: db},
		votes:   &mysql.VoteRepository{DB: db},
		users:   &mysql.UserRepository{DB: db},
		coops:   &mysql.CooperativeRepository{DB: db},
		relay:   pub,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock 测试用
func (s *PollService) WithClock(now func() time.Time) *PollService {
	s.now = now
	return s
}

// CreatePoll 只有主席可以创建，至少两个非空选项，截止时间必须晚于创建时间
func (s *PollService) CreatePoll(ctx context.Context, caller Caller, in CreatePollInput) (*model.Poll, error) {
	coopID, err := caller.presidentCoop()
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationf("title is required")
	}
	if len(title) > maxTitleLen {
		return nil, validationf("title is longer than %d characters", maxTitleLen)
	}
	options := make([]model.Option, 0, len(in.Options))
	for _, text := range in.Options {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if len(text) > maxOptionLen {
			return nil, validationf("option %q is longer than %d characters", text, maxOptionLen)
		}
		options = append(options, model.Option{Text: text})
	}
	if len(options) < MinPollOptions {
		return nil, validationf("a poll needs at least %d options", MinPollOptions)
	}
	now := s.now().UTC()
	if !in.ClosesAt.After(now) {
		return nil, validationf("closing time must be in the future")
	}

	creator := caller.UserID
	p := &model.Poll{
		CooperativeID: coopID,
		CreatorID:     &creator,
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		CreatedAt:     now,
		ClosesAt:      in.ClosesAt.UTC(),
		Options:       options,
	}
	if err := s.polls.Create(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("poll created", "poll_id", p.ID, "cooperative_id", coopID, "options", len(options))
	return p, nil
}

// ListPolls 调用者所在合作社的投票，新的在前
func (s *PollService) ListPolls(ctx context.Context, caller Caller) ([]PollSummary, error) {
	if caller.CooperativeID == nil {
		return nil, ErrForbidden
	}
	polls, err := s.polls.ListByCooperative(ctx, *caller.CooperativeID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(polls))
	for _, p := range polls {
		ids = append(ids, p.ID)
	}
	voted, err := s.votes.VotedPollIDs(ctx, caller.UserID, ids)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]PollSummary, 0, len(polls))
	for i := range polls {
		p := &polls[i]
		out = append(out, PollSummary{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			CreatedAt:   p.CreatedAt,
			ClosesAt:    p.ClosesAt,
			IsOpen:      p.IsOpen(now),
			HasVoted:    voted[p.ID],
			CreatorID:   p.CreatorID,
		})
	}
	return out, nil
}

// loadPoll 不属于调用者合作社的投票一律视为不存在
func (s *PollService) loadPoll(ctx context.Context, caller Caller, pollID uint64) (*model.Poll, error) {
	p, err := s.polls.FindByID(ctx, pollID)
	if err != nil {
		return nil, notFound(err)
	}
	if !caller.InCooperative(p.CooperativeID) {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *PollService) GetPoll(ctx context.Context, caller Caller, pollID uint64) (*PollDetail, error) {
	p, err := s.loadPoll(ctx, caller, pollID)
	if err != nil {
		return nil, err
	}
	t, err := s.tally(ctx, caller, p)
	if err != nil {
		return nil, err
	}
	voted, err := s.votes.HasVoted(ctx, caller.UserID, p.ID)
	if err != nil {
		return nil, err
	}
	return &PollDetail{Poll: p, IsOpen: t.IsOpen, HasVoted: voted, Tally: t}, nil
}

// Tally 实时刷新接口使用
func (s *PollService) Tally(ctx context.Context, caller Caller, pollID uint64) (*Tally, error) {
	p, err := s.loadPoll(ctx, caller, pollID)
	if err != nil {
		return nil, err
	}
	return s.tally(ctx, caller, p)
}

func (s *PollService) tally(ctx context.Context, caller Caller, p *model.Poll) (*Tally, error) {
	total, err := s.polls.CountVotes(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	census, err := s.users.CountResidents(ctx, p.CooperativeID)
	if err != nil {
		return nil, err
	}
	t := ComputeTally(p, total, census, s.now())

	if caller.Role != model.RolePresident {
		return t, nil
	}
	coop, err := s.coops.FindByID(ctx, p.CooperativeID)
	if err != nil {
		return nil, notFound(err)
	}
	if !CanSeeBreakdown(caller.Role, coop) {
		return t, nil
	}
	choices, err := s.votes.ListChoices(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	residents, err := s.users.ListResidents(ctx, p.CooperativeID)
	if err != nil {
		return nil, err
	}
	t.withBreakdown(p, choices, residents)
	return t, nil
}

// UpdatePoll 标题和描述随时可改；截止时间只在无人投票时可改，且必须是未来时间
func (s *PollService) UpdatePoll(ctx context.Context, caller Caller, pollID uint64, patch PollPatch) (*model.Poll, error) {
	if _, err := caller.presidentCoop(); err != nil {
		return nil, err
	}
	p, err := s.loadPoll(ctx, caller, pollID)
	if err != nil {
		return nil, err
	}
	upd := mysql.PollUpdate{Description: patch.Description}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" || len(title) > maxTitleLen {
			return nil, validationf("title must be 1 to %d characters", maxTitleLen)
		}
		upd.Title = &title
	}
	if patch.ClosesAt != nil {
		closesAt := patch.ClosesAt.UTC()
		if !closesAt.After(s.now()) {
			return nil, validationf("closing time must be in the future")
		}
		upd.ClosesAt = &closesAt
	}
	if err := s.polls.Update(ctx, p, upd); err != nil {
		if errors.Is(err, mysql.ErrPollHasVotes) {
			return nil, ErrPollHasVotes
		}
		return nil, notFound(err)
	}
	s.notify(ctx, p.ID)
	return s.polls.FindByID(ctx, p.ID)
}

// CastVote 依次检查：合作社归属、是否开放、是否已投、选项归属，全部通过后同事务写入
func (s *PollService) CastVote(ctx context.Context, caller Caller, pollID, optionID uint64) (*model.Vote, error) {
	v, err := s.castVote(ctx, caller, pollID, optionID)
	s.metrics.VotesTotal.WithLabelValues(voteResult(err)).Inc()
	if err != nil {
		return nil, err
	}
	slog.Info("vote cast", "poll_id", pollID, "option_id", optionID, "user_id", caller.UserID)
	s.notify(ctx, pollID)
	return v, nil
}

func (s *PollService) castVote(ctx context.Context, caller Caller, pollID, optionID uint64) (*model.Vote, error) {
	p, err := s.loadPoll(ctx, caller, pollID)
	if err != nil {
		return nil, err
	}
	// token 里的身份可能已过时：用户被删除或换了合作社
	voter, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	if !voter.InCooperative(p.CooperativeID) {
		return nil, ErrNotFound
	}
	if !p.IsOpen(s.now()) {
		return nil, ErrPollClosed
	}
	voted, err := s.votes.HasVoted(ctx, caller.UserID, p.ID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, ErrAlreadyVoted
	}
	if !hasOption(p, optionID) {
		return nil, ErrInvalidOption
	}

	v := &model.Vote{UserID: caller.UserID, PollID: p.ID, OptionID: optionID}
	if err := s.votes.Cast(ctx, v, p.CooperativeID); err != nil {
		switch {
		case errors.Is(err, mysql.ErrDuplicateVote):
			return nil, ErrAlreadyVoted
		case errors.Is(err, mysql.ErrOptionMismatch):
			return nil, ErrInvalidOption
		}
		return nil, notFound(err)
	}
	return v, nil
}

func hasOption(p *model.Poll, optionID uint64) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// notify 通知失败只记录，不影响已经提交的写入
func (s *PollService) notify(ctx context.Context, pollID uint64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.relay.Publish(ctx, pollID); err != nil {
		s.metrics.RelayPublishFailures.Inc()
		slog.Warn("relay publish failed", "poll_id", pollID, "err", err)
	}
}

func voteResult(err error) string {
	switch {
	case err == nil:
		return observability.VoteAccepted
	case errors.Is(err, ErrAlreadyVoted):
		return observability.VoteAlreadyVoted
	case errors.Is(err, ErrPollClosed):
		return observability.VotePollClosed
	case errors.Is(err, ErrInvalidOption):
		return observability.VoteInvalidOption
	case errors.Is(err, ErrNotFound):
		return observability.VoteNotFound
	default:
		return observability.VoteError
	}
}
