package service

import (
	"math"
	"time"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/repository/mysql"
)

type OptionTally struct {
	OptionID   uint64  `json:"option_id"`
	Text       string  `json:"text"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
}

type VoterDetail struct {
	UserID     uint64 `json:"user_id"`
	Name       string `json:"name"`
	UnitNumber string `json:"unit_number"`
	OptionID   uint64 `json:"option_id"`
	OptionText string `json:"option_text"`
}

type Abstainer struct {
	UserID     uint64 `json:"user_id"`
	Name       string `json:"name"`
	UnitNumber string `json:"unit_number"`
}

// Tally 每次查看详情和实时刷新时现算，不缓存
type Tally struct {
	PollID           uint64        `json:"poll_id"`
	Title            string        `json:"title"`
	IsOpen           bool          `json:"is_open"`
	ClosesAt         time.Time     `json:"closes_at"`
	TotalVotes       int64         `json:"total_votes"`
	Census           int64         `json:"census"`
	Abstention       int64         `json:"abstention"`
	Options          []OptionTally `json:"options"`
	BreakdownVisible bool          `json:"breakdown_visible"`
	Voters           []VoterDetail `json:"voters"`
	Abstainers       []Abstainer   `json:"abstainers"`
}

// Percentage 保留一位小数（恰好一半时取偶数），总票数为 0 时为 0
func Percentage(votes, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.RoundToEven(float64(votes)/float64(total)*1000) / 10
}

// Abstention 人口数据与票数不一致时截断为 0
func Abstention(census, total int64) int64 {
	if census < total {
		return 0
	}
	return census - total
}

// CanSeeBreakdown 两个条件必须同时满足
func CanSeeBreakdown(role model.Role, coop *model.Cooperative) bool {
	return role == model.RolePresident && coop != nil && coop.ResultsVisibleToPresident
}

// ComputeTally 纯计算；明细列表默认为空，由 withBreakdown 填充
func ComputeTally(p *model.Poll, total, census int64, now time.Time) *Tally {
	t := &Tally{
		PollID:     p.ID,
		Title:      p.Title,
		IsOpen:     p.IsOpen(now),
		ClosesAt:   p.ClosesAt,
		TotalVotes: total,
		Census:     census,
		Abstention: Abstention(census, total),
		Options:    make([]OptionTally, 0, len(p.Options)),
		Voters:     []VoterDetail{},
		Abstainers: []Abstainer{},
	}
	for _, o := range p.Options {
		t.Options = append(t.Options, OptionTally{
			OptionID:   o.ID,
			Text:       o.Text,
			Votes:      o.VoteCount,
			Percentage: Percentage(o.VoteCount, total),
		})
	}
	return t
}

// withBreakdown 填充谁投了什么、谁没投
func (t *Tally) withBreakdown(p *model.Poll, choices []mysql.VoterChoice, residents []model.User) {
	texts := make(map[uint64]string, len(p.Options))
	for _, o := range p.Options {
		texts[o.ID] = o.Text
	}
	voted := make(map[uint64]bool, len(choices))
	voters := make([]VoterDetail, 0, len(choices))
	for _, c := range choices {
		voted[c.UserID] = true
		name := c.Name
		if name == "" {
			name = c.Username
		}
		voters = append(voters, VoterDetail{
			UserID:     c.UserID,
			Name:       name,
			UnitNumber: c.UnitNumber,
			OptionID:   c.OptionID,
			OptionText: texts[c.OptionID],
		})
	}
	abstainers := make([]Abstainer, 0)
	for i := range residents {
		u := &residents[i]
		if voted[u.ID] {
			continue
		}
		abstainers = append(abstainers, Abstainer{
			UserID:     u.ID,
			Name:       u.DisplayName(),
			UnitNumber: u.UnitNumber,
		})
	}
	t.BreakdownVisible = true
	t.Voters = voters
	t.Abstainers = abstainers
}
