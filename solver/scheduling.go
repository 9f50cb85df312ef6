package solver

import (
	"context"
	"math"
	"sort"
)

type slot struct {
	opp   *Opportunity
	start float64
}

func (s slot) end() float64 { return s.start + s.opp.Duration }

type levelModel struct {
	initial, capacity, floor, rechargeW float64
}

type scheduleModel struct {
	noOverlap bool
	gapS      float64
	dutyWinS  float64
	dutyCount int
	level     *levelModel
}

func newScheduleModel(p *Problem) scheduleModel {
	sm := scheduleModel{}
	if len(p.Expressions(ExprNoOverlap)) > 0 {
		sm.noOverlap = true
	}
	for _, e := range p.Expressions(ExprMinGap) {
		sm.gapS = math.Max(sm.gapS, e.Params["seconds"])
	}
	for _, e := range p.Expressions(ExprMaxCountInWindow) {
		if c := int(e.Params["count"]); c > 0 && (sm.dutyCount == 0 || c < sm.dutyCount) {
			sm.dutyCount = c
			sm.dutyWinS = e.Params["window_s"]
		}
	}
	for _, e := range p.Expressions(ExprMinLevel) {
		sm.level = &levelModel{
			initial:   e.Params["initial"],
			capacity:  e.Params["capacity"],
			floor:     e.Params["floor"],
			rechargeW: e.Params["recharge_w"],
		}
	}
	return sm
}

// separation is the idle time required between a and b.
func (sm scheduleModel) separation(a, b *Opportunity) float64 {
	if a.Subject == b.Subject {
		return 0
	}
	return sm.gapS
}

// conflict returns the earliest start after which cand no longer clashes with
// s, or false when they do not clash.
func (sm scheduleModel) conflict(s, cand slot) (float64, bool) {
	if !sm.noOverlap && sm.gapS == 0 {
		return 0, false
	}
	sep := sm.separation(s.opp, cand.opp)
	if cand.start < s.end()+sep && s.start < cand.end()+sep {
		return s.end() + sep, true
	}
	return 0, false
}

func (sm scheduleModel) dutyOK(sched []slot) bool {
	if sm.dutyCount <= 0 || sm.dutyWinS <= 0 {
		return true
	}
	j := 0
	for i := range sched {
		if j < i {
			j = i
		}
		for j < len(sched) && sched[j].start < sched[i].start+sm.dutyWinS {
			j++
		}
		if j-i > sm.dutyCount {
			return false
		}
	}
	return true
}

func (sm scheduleModel) levelOK(sched []slot) bool {
	if sm.level == nil {
		return true
	}
	i, _ := sm.level.shortfall(sched)
	return i < 0
}

// shortfall returns the first slot that drops below the floor and by how
// much, or -1 when sched stays above it.
func (l *levelModel) shortfall(sched []slot) (int, float64) {
	level, t := l.initial, 0.0
	for i, s := range sched {
		level = math.Min(l.capacity, level+l.rechargeW*(s.start-t)/3600)
		level -= s.opp.DrawWh
		if level < l.floor {
			return i, l.floor - level
		}
		t = s.end()
	}
	return -1, 0
}

// retryAfter is the next start worth trying for cand once it clears every
// slot but breaks the duty cycle or the level floor: an earlier activity
// leaving the duty window, enough recharge to cover the deficit, or the end
// of the next scheduled activity.
func (sm scheduleModel) retryAfter(sched []slot, cand slot) (float64, bool) {
	next := math.Inf(1)
	consider := func(t float64) {
		if t > cand.start && t < next {
			next = t
		}
	}
	if sm.dutyCount > 0 && sm.dutyWinS > 0 {
		for _, s := range sched {
			consider(s.start + sm.dutyWinS)
		}
	}
	if l := sm.level; l != nil && l.rechargeW > 0 {
		out := insert(sched, cand)
		if i, short := l.shortfall(out); i >= 0 && out[i].opp == cand.opp {
			consider(cand.start + math.Max(short*3600/l.rechargeW, 1))
		}
	}
	for _, s := range sched {
		if s.start >= cand.start {
			consider(s.end() + sm.separation(s.opp, cand.opp))
		}
	}
	return next, !math.IsInf(next, 1)
}

// insert returns sched with cand added in start order.
func insert(sched []slot, cand slot) []slot {
	i := sort.Search(len(sched), func(i int) bool { return sched[i].start > cand.start })
	out := make([]slot, 0, len(sched)+1)
	out = append(out, sched[:i]...)
	out = append(out, cand)
	return append(out, sched[i:]...)
}

// place finds the earliest start at or after from that fits opp into sched,
// moving on through the window while the duty cycle or level floor rejects it.
func (sm scheduleModel) place(sched []slot, opp *Opportunity, from float64) ([]slot, bool) {
	cand := slot{opp: opp, start: math.Max(from, opp.WindowStart)}
	latest := opp.WindowEnd - opp.Duration
	for cand.start <= latest+1e-9 {
		moved := false
		for _, s := range sched {
			if next, clash := sm.conflict(s, cand); clash {
				cand.start = next
				moved = true
				break
			}
		}
		if moved {
			continue
		}
		out := insert(sched, cand)
		if sm.dutyOK(out) && sm.levelOK(out) {
			return out, true
		}
		next, ok := sm.retryAfter(sched, cand)
		if !ok {
			return sched, false
		}
		cand.start = next
	}
	return sched, false
}

func (h *Heuristic) solveScheduling(ctx context.Context, p *Problem) *Result {
	sm := newScheduleModel(p)
	opps := p.Scheduling.Opportunities

	var observations, downlinks []*Opportunity
	for i := range opps {
		if opps[i].Type == OpportunityDownlink {
			downlinks = append(downlinks, &opps[i])
		} else {
			observations = append(observations, &opps[i])
		}
	}
	sort.SliceStable(observations, func(i, j int) bool {
		a, b := observations[i], observations[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.WindowStart != b.WindowStart {
			return a.WindowStart < b.WindowStart
		}
		return a.ID < b.ID
	})
	sort.SliceStable(downlinks, func(i, j int) bool {
		if downlinks[i].WindowStart != downlinks[j].WindowStart {
			return downlinks[i].WindowStart < downlinks[j].WindowStart
		}
		return downlinks[i].ID < downlinks[j].ID
	})

	var sched []slot
	timedOut := false
	for _, o := range observations {
		if ctx.Err() != nil {
			timedOut = true
			break
		}
		sched, _ = sm.place(sched, o, o.WindowStart)
	}

	// Downlinks are placed only where an earlier observation still waits for
	// one.
	if !timedOut {
		for _, d := range downlinks {
			if ctx.Err() != nil {
				timedOut = true
				break
			}
			pending, ok := firstUndelivered(sched, d.WindowEnd)
			if !ok {
				continue
			}
			sched, _ = sm.place(sched, d, pending)
		}
	}

	assignment := make(map[string]float64, 2*len(opps))
	for _, o := range opps {
		assignment[SelectVar(o.ID)] = 0
		assignment[StartVar(o.ID)] = o.WindowStart
	}
	for _, s := range sched {
		assignment[SelectVar(s.opp.ID)] = 1
		assignment[StartVar(s.opp.ID)] = s.start
	}
	res := &Result{
		Status:     StatusSolved,
		Assignment: assignment,
		Objective:  objectiveValue(p.Objective, assignment),
	}
	if timedOut {
		res.Status = StatusTimeout
		res.BestEffort = true
		res.Message = "deadline reached during placement"
	}
	return res
}

// firstUndelivered returns the end of the earliest observation in sched that
// finishes before limit and has no downlink after it.
func firstUndelivered(sched []slot, limit float64) (float64, bool) {
	lastDownlink := math.Inf(-1)
	for _, s := range sched {
		if s.opp.Type == OpportunityDownlink {
			lastDownlink = math.Max(lastDownlink, s.start)
		}
	}
	for _, s := range sched {
		if s.opp.Type == OpportunityDownlink || s.end() > limit {
			continue
		}
		if s.end() > lastDownlink {
			return s.end(), true
		}
	}
	return 0, false
}
