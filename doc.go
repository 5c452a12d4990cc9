/*
Package busreader decodes an encoded audio source into per-channel sample
buffers ready to be assembled into an in-memory multichannel bus.

Concept

The decode/demux engine discovers the stream layout only after decoding
has begun, so the processing graph is built on the fly:

    decodebin ! splitter (convert ! resample ! capsfilter ! deinterleave) ! appsink

Reader drives the graph through a forward-only state machine:

    Unbuilt -> DecodeAttached -> SplitterAttached -> ChannelsPending(n) -> Flowing -> Completed
                                                                                   \-> Failed

A splitter is attached to the first audio stream the decoder exposes. For
every channel pad of the splitter a sink is attached: front-left and
front-right pads get an app sink and a Collector, all others are
discarded. Data flows only after the splitter reported that no more pads
will appear.

All graph messages are handled one at a time on the goroutine that called
CreateBus, so stages and collectors need no locking.

Live input

NewLiveReader builds the splitter directly atop a capture input and
starts the flow immediately.

Errors

Any engine error is terminal for the request. It's returned by CreateBus
and kept in Result.Err together with the data collected before the
failure. Errors can be checked against ErrSourceOpen, ErrNoAudioStream,
ErrEngine and ErrPadLink with errors.Is.
*/
package busreader
