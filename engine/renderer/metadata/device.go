package metadata

import (
	"fmt"

	"github.com/google/uuid"
)

/** @brief Optional device features the pipeline state translation depends on. */
type DeviceFeatures struct {
	GeometryShaders   bool
	DualSourceBlend   bool
	LogicOps          bool
	DepthClamp        bool
	SampleRateShading bool
}

/**
 * @brief Identity of the live device. Driver binaries are only valid for an
 * exact vendor, device and pipeline-cache UUID match.
 */
type DeviceIdentity struct {
	Name              string
	VendorID          uint32
	DeviceID          uint32
	PipelineCacheUUID uuid.UUID
	Features          DeviceFeatures
}

func (d DeviceIdentity) String() string {
	return fmt.Sprintf("%s (vendor=0x%04x device=0x%04x uuid=%s)", d.Name, d.VendorID, d.DeviceID, d.PipelineCacheUUID)
}
