package rules

import (
	"time"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/enums"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/model"
)

// Remaining is the spendable balance for one feature: the paid bucket plus the
// shared free pool, each clamped at zero. Concurrent debits can transiently
// push used above paid; the clamp keeps that invisible to callers.
func Remaining(paid, used, freeRemaining int) int {
	return clampNonNegative(paid-used) + clampNonNegative(freeRemaining)
}

func FreeRemaining(freeCredits, creditsUsed int) int {
	return clampNonNegative(freeCredits - creditsUsed)
}

// IsPro: the pro plan is active only while pro_expires_at is strictly in the
// future.
func IsPro(plan string, proExpiresAt *time.Time, now time.Time) bool {
	if plan != model.PlanPro || proExpiresAt == nil {
		return false
	}
	return proExpiresAt.After(now)
}

func ChatRemaining(u model.User) int {
	return Remaining(u.PaidChatCredits, u.ChatCreditsUsed, FreeRemaining(u.FreeCredits, u.CreditsUsed))
}

func InterviewRemaining(u model.User) int {
	return Remaining(u.PaidInterviewCredits, u.InterviewCreditsUsed, FreeRemaining(u.FreeCredits, u.CreditsUsed))
}

func FeatureRemaining(feature enums.Feature, u model.User) int {
	if feature == enums.FeatureInterview {
		return InterviewRemaining(u)
	}
	return ChatRemaining(u)
}

func HasAccess(feature enums.Feature, u model.User, now time.Time) bool {
	return IsPro(u.Plan, u.ProExpiresAt, now) || FeatureRemaining(feature, u) > 0
}

// DebitSource names one bucket in the deduction chain. The store increments
// UsedColumn by one only while CapColumn - UsedColumn >= 1, as a single
// conditional update.
type DebitSource struct {
	Bucket     string
	UsedColumn string
	CapColumn  string
}

// DebitPlan is the fixed-priority deduction chain for a feature: the paid
// bucket for that feature first, then the shared free pool.
func DebitPlan(feature enums.Feature) []DebitSource {
	var paid DebitSource
	switch feature {
	case enums.FeatureInterview:
		paid = DebitSource{
			Bucket:     "paid_interview",
			UsedColumn: "interview_credits_used",
			CapColumn:  "paid_interview_credits",
		}
	default:
		paid = DebitSource{
			Bucket:     "paid_chat",
			UsedColumn: "chat_credits_used",
			CapColumn:  "paid_chat_credits",
		}
	}

	free := DebitSource{
		Bucket:     "free",
		UsedColumn: "credits_used",
		CapColumn:  "free_credits",
	}

	return []DebitSource{paid, free}
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
