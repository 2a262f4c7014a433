package brager

import (
	"context"
	"fmt"
)

// Server function names understood by the BragerConnect cloud.
const (
	fnLogin           = "s_login"
	fnGetDevIDList    = "s_getMyDevIdList"
	fnGetActiveDevID  = "s_getActiveDevid"
	fnSetActiveDevID  = "s_setActiveDevid"
	fnGetUserVariable = "s_getUserVariable"
	fnSetUserVariable = "s_setUserVariable"
	fnGetAllPoolData  = "s_getAllPoolData"
	fnGetTaskQueue    = "s_getTaskQueue"
	fnGetAlarmList    = "s_getAlarmListExtended"
	fnSetPoolField    = "s_setPoolField"
)

// DeviceList returns the account's device records.
func (c *Client) DeviceList(ctx context.Context) ([]DeviceInfo, error) {
	resp, err := c.Call(ctx, fnGetDevIDList, []any{})
	if err != nil {
		return nil, err
	}

	records, ok := resp.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrInvalidResponse, fnGetDevIDList, resp)
	}

	devices := make([]DeviceInfo, 0, len(records))
	for _, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: device record is %T", ErrInvalidResponse, rec)
		}
		info, err := ParseDeviceInfo(m)
		if err != nil {
			return nil, err
		}
		devices = append(devices, info)
	}
	return devices, nil
}

// ActiveDeviceID returns the session's active device identifier.
func (c *Client) ActiveDeviceID(ctx context.Context) (string, error) {
	resp, err := c.Call(ctx, fnGetActiveDevID, []any{})
	if err != nil {
		return "", err
	}

	devid := fmt.Sprintf("%v", resp)

	c.activeMu.Lock()
	c.activeDevID = devid
	c.activeMu.Unlock()

	return devid, nil
}

// SetActiveDeviceID switches the session's active device. Pool, task
// and alarm calls are scoped to the active device.
func (c *Client) SetActiveDeviceID(ctx context.Context, deviceID string) error {
	resp, err := c.Call(ctx, fnSetActiveDevID, []any{deviceID})
	if err != nil {
		return err
	}
	if ok, isBool := resp.(bool); !isBool || !ok {
		return fmt.Errorf("%w: %s rejected %q", ErrInvalidResponse, fnSetActiveDevID, deviceID)
	}

	c.activeMu.Lock()
	c.activeDevID = deviceID
	c.activeMu.Unlock()

	return nil
}

// ensureActiveDevice switches the active device only when needed.
func (c *Client) ensureActiveDevice(ctx context.Context, deviceID string) error {
	c.activeMu.Lock()
	active := c.activeDevID
	c.activeMu.Unlock()

	if active == deviceID {
		return nil
	}
	return c.SetActiveDeviceID(ctx, deviceID)
}

// UserVariable reads an account variable.
func (c *Client) UserVariable(ctx context.Context, name string) (string, error) {
	resp, err := c.Call(ctx, fnGetUserVariable, []any{name})
	if err != nil {
		return "", err
	}
	return asString(resp), nil
}

// SetUserVariable writes an account variable. The cloud answers with
// an empty response on success.
func (c *Client) SetUserVariable(ctx context.Context, name, value string) error {
	resp, err := c.Call(ctx, fnSetUserVariable, []any{name, value})
	if err != nil {
		return err
	}
	if resp != nil {
		return fmt.Errorf("%w: %s(%s) returned %v", ErrInvalidResponse, fnSetUserVariable, name, resp)
	}
	return nil
}

// AllPoolData fetches the active device's full parameter pools.
func (c *Client) AllPoolData(ctx context.Context) (*Pool, error) {
	resp, err := c.Call(ctx, fnGetAllPoolData, []any{})
	if err != nil {
		return nil, err
	}

	raw, ok := resp.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrInvalidResponse, fnGetAllPoolData, resp)
	}
	return ParsePoolData(raw)
}

// TaskQueue fetches the active device's task queue. An empty queue is
// not an error.
func (c *Client) TaskQueue(ctx context.Context) ([]Task, error) {
	resp, err := c.Call(ctx, fnGetTaskQueue, []any{})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	records, ok := resp.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrInvalidResponse, fnGetTaskQueue, resp)
	}

	tasks := make([]Task, 0, len(records))
	for _, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		task, err := ParseTask(m)
		if err != nil {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// AlarmList fetches the active device's extended alarm list. An empty
// list is not an error.
func (c *Client) AlarmList(ctx context.Context) ([]Alarm, error) {
	resp, err := c.Call(ctx, fnGetAlarmList, []any{})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	records, ok := resp.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrInvalidResponse, fnGetAlarmList, resp)
	}

	alarms := make([]Alarm, 0, len(records))
	for _, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		alarm, err := ParseAlarm(m)
		if err != nil {
			continue
		}
		alarms = append(alarms, alarm)
	}
	return alarms, nil
}

// SetPoolField writes one parameter value on a device. The reference
// must address the value channel; writes to status or unit channels
// are rejected locally.
func (c *Client) SetPoolField(ctx context.Context, deviceID string, ref FieldRef, value any) error {
	if ref.Channel != ChannelValue {
		return fmt.Errorf("%w: cannot write channel %q", ErrInvalidFieldRef, ref.Channel)
	}

	if err := c.ensureActiveDevice(ctx, deviceID); err != nil {
		return err
	}

	_, err := c.Call(ctx, fnSetPoolField, []any{ref.Pool, ref.Field, value})
	return err
}

// FetchDevice assembles a full snapshot of one device: its account
// record, parameter pools, task queue and alarm list.
func (c *Client) FetchDevice(ctx context.Context, deviceID string) (*Device, error) {
	devices, err := c.DeviceList(ctx)
	if err != nil {
		return nil, err
	}

	for _, info := range devices {
		if info.DevID == deviceID {
			return c.fetchSnapshot(ctx, info)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
}

// FetchDevices assembles snapshots for every device on the account.
func (c *Client) FetchDevices(ctx context.Context) ([]*Device, error) {
	infos, err := c.DeviceList(ctx)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: account has no devices", ErrInvalidResponse)
	}

	devices := make([]*Device, 0, len(infos))
	for _, info := range infos {
		device, err := c.fetchSnapshot(ctx, info)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", info.DevID, err)
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// fetchSnapshot collects pool, task and alarm data for one device
// record.
func (c *Client) fetchSnapshot(ctx context.Context, info DeviceInfo) (*Device, error) {
	if err := c.ensureActiveDevice(ctx, info.DevID); err != nil {
		return nil, err
	}

	pool, err := c.AllPoolData(ctx)
	if err != nil {
		return nil, err
	}

	tasks, err := c.TaskQueue(ctx)
	if err != nil {
		return nil, err
	}

	alarms, err := c.AlarmList(ctx)
	if err != nil {
		return nil, err
	}

	return &Device{
		Info:   info,
		Pool:   pool,
		Tasks:  tasks,
		Alarms: alarms,
	}, nil
}
