package pipeline

import (
	"context"

	"github.com/MrWong99/dubctl/internal/atomicfile"
	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/render"
)

// demuxPhase extracts the source audio track from the input video.
type demuxPhase struct{ d Deps }

func (p *demuxPhase) Name() string       { return NameDemux }
func (p *demuxPhase) Version() int       { return 1 }
func (p *demuxPhase) Requires() []string { return []string{KeyVideoSource} }
func (p *demuxPhase) Provides() []string { return []string{KeyAudioSource} }
func (p *demuxPhase) Config() any {
	return struct {
		FFmpeg string `json:"ffmpeg"`
	}{p.d.Media.FFmpegPath}
}

func (p *demuxPhase) Run(ctx context.Context) error {
	return p.d.Media.ExtractAudio(ctx, p.d.VideoPath, p.d.WS.SourceAudio())
}

// separatePhase splits the source audio into vocal and accompaniment stems
// via the external separation tool.
type separatePhase struct{ d Deps }

func (p *separatePhase) Name() string       { return NameSeparate }
func (p *separatePhase) Version() int       { return 1 }
func (p *separatePhase) Requires() []string { return []string{KeyAudioSource} }
func (p *separatePhase) Provides() []string {
	return []string{KeyAudioVocals, KeyAudioAccompaniment}
}
func (p *separatePhase) Config() any {
	return struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}{p.d.Separator.Command, p.d.Separator.Args}
}

func (p *separatePhase) Run(ctx context.Context) error {
	return p.d.Separator.Run(ctx, p.d.WS.SourceAudio(), p.d.WS.VocalsAudio(), p.d.WS.AccompanimentAudio())
}

// burnPhase renders both SRT files and muxes the dub track into the final
// video with the target-language subtitles burned in.
type burnPhase struct{ d Deps }

func (p *burnPhase) Name() string { return NameBurn }
func (p *burnPhase) Version() int { return 1 }
func (p *burnPhase) Requires() []string {
	return []string{KeyVideoSource, KeyAudioMix, KeySubtitleModel, KeySubtitleAlign}
}
func (p *burnPhase) Provides() []string {
	return []string{KeySourceSRT, KeyTargetSRT, KeyDubbedVideo}
}
func (p *burnPhase) Config() any {
	return struct {
		FFmpeg string `json:"ffmpeg"`
	}{p.d.Media.FFmpegPath}
}

func (p *burnPhase) Run(ctx context.Context) error {
	sm, err := readJSONInput[model.SubtitleModel](NameBurn, KeySubtitleModel, p.d.WS.SubtitleModel())
	if err != nil {
		return err
	}
	sa, err := readJSONInput[model.SubtitleAlign](NameBurn, KeySubtitleAlign, p.d.WS.SubtitleAlign())
	if err != nil {
		return err
	}

	if err := writeText(p.d.WS.RenderChineseSRT(), render.SRT(render.SourceCues(sm))); err != nil {
		return err
	}
	if err := writeText(p.d.WS.RenderEnglishSRT(), render.SRT(render.TargetCues(sa))); err != nil {
		return err
	}

	return p.d.Media.Burn(ctx, p.d.VideoPath, p.d.WS.MixAudio(), p.d.WS.RenderEnglishSRT(), p.d.WS.RenderDubbedVideo())
}

func writeText(path, content string) error {
	return atomicfile.Write(path, []byte(content), 0o644)
}
