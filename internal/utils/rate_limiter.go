package utils

import (
	"golang.org/x/time/rate"
)

// FrameLimiter 入站帧限速，每秒 perSecond 帧，突发为 2 倍
// perSecond <= 0 时不限速
type FrameLimiter struct {
	limiter *rate.Limiter
}

func NewFrameLimiter(perSecond int) *FrameLimiter {
	if perSecond <= 0 {
		return &FrameLimiter{}
	}
	return &FrameLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond*2)}
}

// Allow 是否放行一帧
func (f *FrameLimiter) Allow() bool {
	if f == nil || f.limiter == nil {
		return true
	}
	return f.limiter.Allow()
}
