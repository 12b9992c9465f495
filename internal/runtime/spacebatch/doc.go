// Package spacebatch implements the SpaceToBatch / BatchToSpace index
// transform used to run dilated (atrous) operators as dense ones.
//
// A space tensor has layout [batch, spatial_1..spatial_D, depth] and the
// matching batch tensor has layout [batch*Πblock, spatial_1'..spatial_D',
// depth] with spatial_i' = ceil((spatial_i+pad_start_i+pad_end_i)/block_i).
// D is between 1 and MaxBlockDims.
//
// Transform walks every batch-tensor element exactly once in a flat,
// chunked parallel loop. All index arithmetic inside the loop is int32, so
// every shape, padding and element count is validated against the signed
// 32-bit range before any worker starts.
package spacebatch
