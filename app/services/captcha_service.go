// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wenlng/go-captcha/v2/rotate"
	xdraw "golang.org/x/image/draw"
)

// CaptchaService issues and checks rotate captchas for the admin login.
// The client renders both images, lets the operator rotate the thumb and submits the angle with the challenge ID.
type CaptchaService interface {
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	// VerifyRotate consumes the challenge whether or not the angle matches
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool
}

type RotateChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
}

type captchaServiceImpl struct {
	rotator rotate.Captcha
	store   *challengeStore
	padding int // accepted angle difference in degrees
}

// NewCaptchaServiceRotate constructs a CaptchaService using rotate mode
func NewCaptchaServiceRotate(ttl time.Duration, padding int, imgSizePx int) (CaptchaService, error) {
	if imgSizePx <= 0 {
		imgSizePx = 220
	}

	builder := rotate.NewBuilder(
		rotate.WithImageSquareSize(imgSizePx),
	)
	builder.SetResources(
		rotate.WithImages(generateRotateBackgrounds(3, imgSizePx)),
	)

	return &captchaServiceImpl{
		rotator: builder.Make(),
		store:   newChallengeStore(ttl),
		padding: padding,
	}, nil
}

func (s *captchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, err
	}

	block := captData.GetData()
	if block == nil {
		return nil, ErrCaptchaUnavailable
	}

	masterB64, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumbB64, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	s.store.put(id, block.Angle)

	return &RotateChallenge{
		ID:                id,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
	}, nil
}

func (s *captchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	target, ok := s.store.take(challengeID)
	if !ok {
		return false
	}
	return rotate.Validate(int(math.Round(userAngle)), target, s.padding)
}

type challenge struct {
	angle     int
	expiresAt time.Time
}

type challengeStore struct {
	mu  sync.Mutex
	m   map[string]challenge
	ttl time.Duration
}

func newChallengeStore(ttl time.Duration) *challengeStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &challengeStore{m: make(map[string]challenge), ttl: ttl}
}

// put stores a challenge and drops expired ones
func (s *challengeStore) put(id string, angle int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, v := range s.m {
		if now.After(v.expiresAt) {
			delete(s.m, k)
		}
	}
	s.m[id] = challenge{angle: angle, expiresAt: now.Add(s.ttl)}
}

// take removes the challenge and returns its angle if it has not expired
func (s *challengeStore) take(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.m[id]
	if !ok {
		return 0, false
	}
	delete(s.m, id)
	if time.Now().After(c.expiresAt) {
		return 0, false
	}
	return c.angle, true
}

// generateRotateBackgrounds renders small noisy gradients and scales them up, which blurs the noise into texture
func generateRotateBackgrounds(n int, size int) []image.Image {
	if n <= 0 {
		n = 1
	}
	imgs := make([]image.Image, 0, n)
	for range n {
		small := newNoiseGradientImage(size/4, size/4)
		dst := image.NewRGBA(image.Rect(0, 0, size, size))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), small, small.Bounds(), xdraw.Src, nil)
		imgs = append(imgs, dst)
	}
	return imgs
}

func newNoiseGradientImage(w, h int) *image.RGBA {
	if w < 8 {
		w, h = 8, 8
	}
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	hue := uint8(rand.IntN(120))
	for y := range h {
		for x := range w {
			dx := float64(x - w/2)
			dy := float64(y - h/2)
			t := math.Min(math.Sqrt(dx*dx+dy*dy)/float64(w/2), 1)
			base := uint8(200 - int(150*t))
			noise := uint8(rand.IntN(40))
			rgba.Set(x, y, color.RGBA{R: base/2 + hue, G: base, B: 255 - base/2 + noise/4, A: 255})
		}
	}
	return rgba
}
