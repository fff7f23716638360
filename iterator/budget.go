package iterator

// Cost constants for the common operations, in budget units. These mirror
// the relative expense of the underlying storage accesses and are tuning
// knobs, not correctness requirements.
const (
	// CostCall is the overhead of entering any iterator operation.
	CostCall int64 = 1

	// CostMemoryStep is one step over an in-memory array.
	CostMemoryStep int64 = 1

	// CostFileStep is one step that may touch a file-backed array.
	CostFileStep int64 = 12

	// CostBinarySearch is a positioning search within one array.
	CostBinarySearch int64 = 24
)

// BudgetPolicy decides when a budget counts as exhausted. The production
// policy is simply "remaining <= 0"; test harnesses install policies that
// report exhaustion on a schedule to exercise suspend/resume paths.
type BudgetPolicy interface {
	Exhausted(remaining int64) bool
}

// Budget is a caller-supplied work allowance. Operations charge it as they
// run and suspend with ErrMore once it is exhausted.
//
// A nil *Budget means unlimited: all methods are nil-safe.
type Budget struct {
	remaining int64
	policy    BudgetPolicy
}

// NewBudget returns a budget holding n units.
func NewBudget(n int64) *Budget {
	return &Budget{remaining: n}
}

// NewBudgetWithPolicy returns a budget with an injected exhaustion policy.
func NewBudgetWithPolicy(n int64, p BudgetPolicy) *Budget {
	return &Budget{remaining: n, policy: p}
}

// Charge deducts cost units. The balance may go negative; the overdraft is
// visible to the caller through Remaining.
func (b *Budget) Charge(cost int64) {
	if b == nil {
		return
	}
	b.remaining -= cost
}

// Refill adds n units, used by callers that re-drive a suspended
// operation with a fresh allowance.
func (b *Budget) Refill(n int64) {
	if b == nil {
		return
	}
	b.remaining += n
}

// Remaining returns the current balance.
func (b *Budget) Remaining() int64 {
	if b == nil {
		return int64(^uint64(0) >> 1)
	}
	return b.remaining
}

// Exhausted reports whether the operation must suspend.
func (b *Budget) Exhausted() bool {
	if b == nil {
		return false
	}
	if b.policy != nil && b.policy.Exhausted(b.remaining) {
		return true
	}
	return b.remaining <= 0
}
