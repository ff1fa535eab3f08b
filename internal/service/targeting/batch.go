package targeting

import (
	"context"

	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// CampaignResult is the outcome of one segment in a batch run.
type CampaignResult struct {
	SegmentID string
	Campaign  *domain.AdCampaign
	Err       error
}

// GenerateAllCampaigns drafts a campaign for every segment that has none,
// with at most concurrency calls outstanding. onResult is called once per
// segment as soon as it finishes, so the caller can merge results by id
// while the rest are still running. Segments skipped by the caller's
// admission check (admit returns false) are not attempted.
func (p *Pipeline) GenerateAllCampaigns(
	ctx context.Context,
	segments []domain.TargetSegment,
	profile *domain.CandidateProfile,
	concurrency int,
	admit func(segmentID string) (release func(), ok bool),
	onResult func(CampaignResult),
) int {
	if concurrency < 1 {
		concurrency = 1
	}
	pl := pool.New().WithMaxGoroutines(concurrency)
	started := 0

	for _, segment := range segments {
		if segment.AdCampaign != nil {
			continue
		}
		release := func() {}
		if admit != nil {
			r, ok := admit(segment.ID)
			if !ok {
				continue
			}
			release = r
		}
		started++
		segment := segment
		pl.Go(func() {
			defer release()
			campaign, err := p.Campaign(ctx, segment, profile)
			if err != nil {
				p.logger.Warn("Batch campaign failed", zap.String("segment_id", segment.ID), zap.Error(err))
			}
			if onResult != nil {
				onResult(CampaignResult{SegmentID: segment.ID, Campaign: campaign, Err: err})
			}
		})
	}

	pl.Wait()
	p.logger.Info("Batch campaign generation finished",
		zap.Int("segments", len(segments)),
		zap.Int("attempted", started),
	)
	return started
}
