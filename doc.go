// Package chunkfile reads and writes chunked binary containers.
//
// A container is split into chunks, each identified by an 8 character name
// (see package chunkid) and holding an application defined payload. Readers
// open chunks by id in any order and skip the ones they do not know about,
// which keeps old readers working with new files and the other way round.
//
// Two layouts are supported. The directory layout, written by Writer and read
// by Reader, looks like this (all integers little-endian):
//
//	[0]  u64 magic            chunkid.Magic
//	[8]  u64 app id           chosen by the application
//	[16] i64 file size        patched by Writer.Finalize
//	[24] i64 directory offset patched by Writer.Finalize
//	     chunks: u64 id marker, payload
//	     directory: u64 chunkid.DirectoryMarker, i32 count,
//	                count × (u64 id, i32 size, u64 payload offset)
//
// Payload offsets are relative to the end of the 32 byte header.
//
// The sequential layout, written by SequentialWriter and read by
// SequentialReader, is a plain run of (u64 id, u32 size, payload) frames. It
// has no header and no directory, so chunks are found by walking the stream.
//
// Both layouts hand out chunk payloads as *bounded.Channel values: streams of
// their own that only see the bytes of one chunk. A reader or writer has at
// most one chunk open at a time, and the channel becomes unusable once its
// chunk is closed.
//
// Readers, writers and channels are not safe for concurrent use.
package chunkfile
