package texcomp

import (
	"errors"
	"fmt"
	"time"
)

var (
	errNilSource  = errors.New("nil or freed source mip set")
	errNilOptions = errors.New("nil kernel options")
	errShortLevel = errors.New("level buffer smaller than its dimensions")
)

// Convert compresses every mip level and face of src into a new MipSet
// of format opts.Format, using the backend opts.EncodeWith.
//
// Conversions on one Framework are serialized: Convert holds the
// framework lock from the first allocation until the last level is
// written. For each level and face the backend is acquired, configured,
// run and, under PolicyPerLevel, released again.
//
// Any failure aborts the whole conversion: the destination is freed, the
// backend is released and the error is returned. Failures while setting up
// or running the backend carry CodeFailedHostSetup with the specific cause
// in the chain, so errors.Is(err, ErrUnsupportedBackend) and similar work.
//
// When opts.GetPerfStats is set, opts.PerfStats receives the totals over
// all levels; opts.GetDeviceInfo fills opts.DeviceInfo from the backend that
// ran the first level. A collection failure is only logged.
func (f *Framework) Convert(src *MipSet, opts *KernelOptions, fb Feedback) (*MipSet, error) {
	if src == nil || src.Freed() {
		return nil, newError(CodeInvalidSourceTexture, "convert", errNilSource)
	}
	if opts == nil {
		return nil, newError(CodeInvalidDestTexture, "convert", errNilOptions)
	}
	if src.MipLevels < 1 || src.MipLevels > src.MaxMipLevels {
		return nil, newError(CodeInvalidSourceTexture, "convert",
			fmt.Errorf("mip level count %d out of range 1..%d", src.MipLevels, src.MaxMipLevels))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dst, err := NewMipSet(src.Width, src.Height, src.Depth, opts.Format, src.TextureType)
	if err != nil {
		return nil, err
	}
	dst.ChannelFormat = ChannelCompressed
	dst.BlockWidth, dst.BlockHeight, dst.BlockDepth = 4, 4, 1
	dst.MipLevels = src.MipLevels

	prevSrcView := src.ActiveLevel()
	defer func() { src.active = prevSrcView }()

	c := conversion{
		fw:   f,
		src:  src,
		dst:  dst,
		opts: *opts,
		fb:   fb,
	}
	start := time.Now()

	for mip := range src.MipLevels {
		for face := range src.MaxFacesOrSlices(mip) {
			if err := c.level(mip, face); err != nil {
				dst.freeLevelData(mip, face)
				dst.Free()
				if rerr := f.lifecycle.Release(true); rerr != nil {
					f.log().Warn("texcomp: release after failed conversion", "err", rerr)
				}
				return nil, err
			}
		}
	}

	if opts.GetPerfStats {
		c.stats.TotalTime = time.Since(start)
		if secs := c.stats.ComputeTime.Seconds(); secs > 0 {
			c.stats.MPixelsPerSec = float64(c.pixels) / secs / 1e6
		}
		opts.PerfStats = c.stats
	}
	if c.device != nil {
		opts.DeviceInfo = *c.device
	}

	if err := dst.SetActiveLevel(0, 0); err != nil {
		dst.Free()
		return nil, err
	}
	f.log().Debug("texcomp: conversion done",
		"format", opts.Format.String(), "backend", opts.EncodeWith.String(),
		"levels", dst.MipLevels, "elapsed", time.Since(start))
	return dst, nil
}

// conversion is the state of one Convert call.
type conversion struct {
	fw   *Framework
	src  *MipSet
	dst  *MipSet
	opts KernelOptions
	fb   Feedback

	sinkAttached bool
	stats        PerformanceStats
	pixels       int
	device       *DeviceInfo
}

func (c *conversion) level(mip, face int) error {
	lc := c.fw.lifecycle
	log := c.fw.log()

	in := c.src.Level(mip, face)
	if in == nil {
		return newError(CodeInvalidSourceTexture, "convert", fmt.Errorf("missing level %d face %d", mip, face))
	}
	srcTex := Texture{
		Width:       in.Width,
		Height:      in.Height,
		BlockWidth:  c.src.BlockWidth,
		BlockHeight: c.src.BlockHeight,
		BlockDepth:  c.src.BlockDepth,
		Format:      c.src.Format,
		Data:        in.Data,
	}
	if need := srcTex.BufferSize(); need == 0 || len(in.Data) < need {
		return newError(CodeInvalidSourceTexture, "convert",
			fmt.Errorf("%w: level %d face %d has %d bytes, need %d", errShortLevel, mip, face, len(in.Data), need))
	}

	dstTex := Texture{
		Width:       in.Width,
		Height:      in.Height,
		BlockWidth:  4,
		BlockHeight: 4,
		BlockDepth:  1,
		Format:      c.opts.Format,
	}
	if _, err := c.dst.AllocateCompressedLevelData(mip, face, dstTex.Width, dstTex.Height, dstTex.BufferSize()); err != nil {
		return err
	}

	if err := c.src.SetActiveLevel(mip, face); err != nil {
		return err
	}
	if err := c.dst.SetActiveLevel(mip, face); err != nil {
		return err
	}

	if err := lc.Acquire(c.src, &c.opts); err != nil {
		log.Warn("texcomp: unable to set up backend", "backend", c.opts.EncodeWith.String(), "err", err)
		return newError(CodeFailedHostSetup, "convert", err)
	}

	if !c.sinkAttached {
		lc.SetSharedIO(log)
		c.sinkAttached = true
	}

	co := ComputeOptions{ForceRebuild: false}
	if err := lc.SetComputeOptions(&co); err != nil {
		return newError(CodeFailedHostSetup, "convert", fmt.Errorf("compute options: %w", err))
	}

	if err := lc.Compress(&c.opts, c.src, c.dst, c.fb); err != nil {
		return newError(CodeFailedHostSetup, "convert", fmt.Errorf("compress level %d face %d: %w", mip, face, err))
	}
	c.pixels += in.Width * in.Height

	if c.opts.GetPerfStats {
		ps, err := lc.PerformanceStats()
		if err != nil {
			log.Warn("texcomp: unable to get performance stats", "err", err)
		} else {
			c.stats.ComputeTime += ps.ComputeTime
			c.stats.NumBlocks += ps.NumBlocks
		}
	}

	if c.opts.GetDeviceInfo && c.device == nil {
		if info, err := lc.DeviceInfo(); err != nil {
			log.Warn("texcomp: unable to get device info", "err", err)
		} else {
			c.device = &info
		}
	}

	if c.fw.policy == PolicyPerLevel {
		if err := lc.Release(true); err != nil {
			log.Warn("texcomp: backend release failed", "err", err)
		}
	}
	return nil
}
