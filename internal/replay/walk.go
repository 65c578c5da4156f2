package replay

import (
	"fmt"
	"log"

	"github.com/oxyreplay/pipewarm/internal/archive"
	"github.com/oxyreplay/pipewarm/internal/deserializer"
	"github.com/oxyreplay/pipewarm/internal/restag"
)

// Walk drives one single-process replay: it enumerates every tag in the
// archive's published order, reads and parses each entry, and inserts the
// sync_threads and derivation-resolution boundaries described in §4.2-§4.3.
//
// Per-entry ArchiveErrors (a missing blob, a malformed document) are logged
// and skipped — replay continues (§7). A failure constructing the device
// from the first AppInfo entry, or a ResolverStall from either pipeline
// kind's resolver, is fatal and returned to the caller.
func Walk(reader archive.Reader, des deserializer.Deserializer, engine *Engine) error {
	if err := reader.Prepare(); err != nil {
		return fmt.Errorf("replay: preparing archive: %w", err)
	}

	for _, tag := range restag.Order() {
		hashes, err := reader.HashList(tag)
		if err != nil {
			log.Printf("[replay] %s: hash list unavailable: %v", tag, err)
			continue
		}

		for _, hash := range hashes {
			raw, err := reader.ReadEntry(tag, hash, archive.Decompressed)
			if err != nil {
				log.Printf("[replay] %s %s: read entry: %v", tag, hash, err)
				continue
			}
			if err := des.Parse(engine, tag, hash, raw); err != nil {
				if tag == restag.AppInfo {
					return fmt.Errorf("replay: device init: %w", err)
				}
				log.Printf("[replay] %s %s: parse: %v", tag, hash, err)
			}
		}

		switch tag {
		case restag.ShaderModule:
			// Establishes the happens-before edge pipelines need: every
			// shader module parsed so far is either compiled or failed
			// before any pipeline referencing it is dequeued (§4.2, §5).
			engine.SyncThreads()
		case restag.GraphicsPipeline:
			if err := engine.ResolveGraphicsPipelines(); err != nil {
				return fmt.Errorf("replay: %w", err)
			}
		case restag.ComputePipeline:
			if err := engine.ResolveComputePipelines(); err != nil {
				return fmt.Errorf("replay: %w", err)
			}
		}
	}

	engine.SyncThreads()
	return nil
}
