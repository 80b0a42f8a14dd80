package enums

import "fmt"

// DevicePlatform identifies which push gateway a device token belongs to.
type DevicePlatform string

const (
	DevicePlatformIOS     DevicePlatform = "ios"
	DevicePlatformAndroid DevicePlatform = "android"
	DevicePlatformWeb     DevicePlatform = "web"
)

var validDevicePlatforms = []DevicePlatform{
	DevicePlatformIOS,
	DevicePlatformAndroid,
	DevicePlatformWeb,
}

// String implements fmt.Stringer.
func (p DevicePlatform) String() string {
	return string(p)
}

// IsValid reports whether the value is a known DevicePlatform.
func (p DevicePlatform) IsValid() bool {
	for _, candidate := range validDevicePlatforms {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseDevicePlatform converts raw input into a DevicePlatform.
func ParseDevicePlatform(value string) (DevicePlatform, error) {
	for _, candidate := range validDevicePlatforms {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid device platform %q", value)
}

// DeviceAppRole identifies which app surface registered the device.
type DeviceAppRole string

const (
	DeviceAppRoleCustomer DeviceAppRole = "customer_app"
	DeviceAppRoleRunner   DeviceAppRole = "runner_app"
)

var validDeviceAppRoles = []DeviceAppRole{
	DeviceAppRoleCustomer,
	DeviceAppRoleRunner,
}

// IsValid reports whether the value is a known DeviceAppRole.
func (r DeviceAppRole) IsValid() bool {
	for _, candidate := range validDeviceAppRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseDeviceAppRole converts raw input into a DeviceAppRole.
func ParseDeviceAppRole(value string) (DeviceAppRole, error) {
	for _, candidate := range validDeviceAppRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid device app role %q", value)
}
