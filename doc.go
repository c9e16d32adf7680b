/*
go-visionpost turns raw output tensors from vision models into structured,
image-space geometric annotations: axis-aligned bounding boxes, rotated
boxes, polygons, keypoints, and segment masks.

The library does not run models.  Callers execute inference with their own
engine (ONNX Runtime, TFLite, RKNN, etc), materialize the output tensors as
float32 buffers, and hand them to one of the decoders in the postprocess
subpackage along with the letterbox scaling information recorded by the
preprocess subpackage.  Decoding is CPU bound and fans out across a fixed
size worker pool, with batch order always preserved in the results.
*/
package visionpost
