package master

// Schemas for the configuration models stored in the Core Master's memory
// banks. Output and input configuration is packed 8 instances per module, so
// most address specs derive page and offset from the instance id.

var GlobalConfiguration = NewGlobalModelDefinition("GlobalConfiguration").
	WithField(NewMemoryByteField("number_of_output_modules", MemoryTypeEEPROM, FixedAddress(0, 1))).
	WithField(NewMemoryByteField("number_of_input_modules", MemoryTypeEEPROM, FixedAddress(0, 2))).
	WithField(NewMemoryByteField("number_of_sensor_modules", MemoryTypeEEPROM, FixedAddress(0, 3))).
	WithField(NewMemoryByteField("scan_time_rs485_sensor_modules", MemoryTypeEEPROM, FixedAddress(0, 4))).
	WithField(NewMemoryByteField("number_of_can_inputs", MemoryTypeEEPROM, FixedAddress(0, 5))).
	WithField(NewMemoryByteField("number_of_can_sensors", MemoryTypeEEPROM, FixedAddress(0, 6))).
	WithField(NewMemoryByteField("number_of_ucan_modules", MemoryTypeEEPROM, FixedAddress(0, 7))).
	WithField(NewMemoryByteField("scan_time_rs485_bus", MemoryTypeEEPROM, FixedAddress(0, 8))).
	WithField(NewMemoryByteField("number_of_can_control_modules", MemoryTypeEEPROM, FixedAddress(0, 9))).
	WithField(NewMemoryByteField("scan_time_rs485_can_control_modules", MemoryTypeEEPROM, FixedAddress(0, 10))).
	WithField(NewMemoryWordField("groupaction_all_outputs_off", MemoryTypeEEPROM, FixedAddress(0, 50))).
	WithField(NewMemoryWordField("groupaction_startup", MemoryTypeEEPROM, FixedAddress(0, 52))).
	WithField(NewMemoryWordField("groupaction_minutes_changed", MemoryTypeEEPROM, FixedAddress(0, 54))).
	WithField(NewMemoryWordField("groupaction_hours_changed", MemoryTypeEEPROM, FixedAddress(0, 56))).
	WithField(NewMemoryWordField("groupaction_day_changed", MemoryTypeEEPROM, FixedAddress(0, 58))).
	WithField(NewMemoryByteArrayField("startup_time", MemoryTypeFRAM, FixedAddress(0, 64), 3)).
	WithField(NewMemoryByteArrayField("startup_date", MemoryTypeFRAM, FixedAddress(0, 67), 3)).
	WithField(NewMemory3BytesField("uptime_hours", MemoryTypeFRAM, FixedAddress(0, 70)))

var OutputModuleConfiguration = NewModelDefinition("OutputModuleConfiguration").
	WithField(NewMemoryStringField("device_type", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id, 0 }, 1)).
	WithField(NewMemoryAddressField("address", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id, 0 })).
	WithField(NewMemoryVersionField("firmware_version", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id, 4 }))

var OutputConfiguration = NewModelDefinition("OutputConfiguration").
	WithRelation(NewMemoryRelation("module", OutputModuleConfiguration, func(id int) int { return id / 8 })).
	WithField(NewMemoryWordField("timer_value", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id/8, 7 + (id%8)*2 })).
	WithField(NewMemoryByteField("timer_type", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id/8, 23 + id%8 })).
	WithField(NewMemoryByteField("output_type", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id/8, 31 + id%8 })).
	WithField(NewMemoryByteField("min_output_level", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id/8, 39 + id%8 })).
	WithField(NewMemoryByteField("max_output_level", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id/8, 47 + id%8 })).
	WithField(NewMemoryWordField("output_groupaction_follow", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id/8, 55 + (id%8)*2 })).
	WithComposite(NewCompositeFieldSpec("dali_mapping",
		NewMemoryByteField("dali_mapping", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id/8, 71 + id%8 }),
		NewCompositeNumberField("dali_output_id", 0, 8).WithLimits(63, 0),
		NewCompositeNumberField("dali_group_id", 0, 8).WithLimits(15, 64))).
	WithField(NewMemoryStringField("name", MemoryTypeEEPROM, func(id int) (int, int) { return 1 + id/8, 128 + (id%8)*16 }, 16))

var InputModuleConfiguration = NewModelDefinition("InputModuleConfiguration").
	WithField(NewMemoryStringField("device_type", MemoryTypeEEPROM, func(id int) (int, int) { return 81 + id*2, 0 }, 1)).
	WithField(NewMemoryAddressField("address", MemoryTypeEEPROM, func(id int) (int, int) { return 81 + id*2, 0 })).
	WithField(NewMemoryVersionField("firmware_version", MemoryTypeEEPROM, func(id int) (int, int) { return 81 + id*2, 4 }))

var InputConfiguration = NewModelDefinition("InputConfiguration").
	WithRelation(NewMemoryRelation("module", InputModuleConfiguration, func(id int) int { return id / 8 })).
	WithComposite(NewCompositeFieldSpec("input_config",
		NewMemoryByteField("input_config", MemoryTypeEEPROM, func(id int) (int, int) { return 81 + (id/8)*2, 7 + id%8 }),
		NewCompositeBitField("normal_open", 1))).
	WithComposite(NewCompositeFieldSpec("dali_mapping",
		NewMemoryByteField("dali_mapping", MemoryTypeEEPROM, func(id int) (int, int) { return 81 + (id/8)*2, 15 + id%8 }),
		NewCompositeNumberField("lunatone_input_id", 0, 8).WithLimits(63, 0),
		NewCompositeNumberField("helvar_input_id", 0, 8).WithLimits(63, 64))).
	WithField(NewMemoryStringField("name", MemoryTypeEEPROM, func(id int) (int, int) { return 81 + (id/8)*2, 128 + (id%8)*16 }, 16)).
	WithComposite(NewCompositeFieldSpec("input_link",
		NewMemoryWordField("input_link", MemoryTypeEEPROM, func(id int) (int, int) { return 82 + (id/8)*2, (id % 8) * 2 }),
		NewCompositeNumberField("output_id", 0, 10),
		NewCompositeBitField("enable_specific_actions", 10),
		NewCompositeBitField("dimming_up", 11),
		NewCompositeBitField("enable_1s_press", 12),
		NewCompositeBitField("enable_2s_press", 13),
		NewCompositeBitField("enable_double_press", 15))).
	WithField(NewMemoryBasicActionField("basic_action_press", MemoryTypeEEPROM, func(id int) (int, int) { return 82 + (id/8)*2, 16 + (id%8)*basicActionLength })).
	WithField(NewMemoryBasicActionField("basic_action_release", MemoryTypeEEPROM, func(id int) (int, int) { return 82 + (id/8)*2, 64 + (id%8)*basicActionLength })).
	WithField(NewMemoryBasicActionField("basic_action_1s_press", MemoryTypeEEPROM, func(id int) (int, int) { return 82 + (id/8)*2, 112 + (id%8)*basicActionLength })).
	WithField(NewMemoryBasicActionField("basic_action_2s_press", MemoryTypeEEPROM, func(id int) (int, int) { return 82 + (id/8)*2, 160 + (id%8)*basicActionLength })).
	WithField(NewMemoryBasicActionField("basic_action_double_press", MemoryTypeEEPROM, func(id int) (int, int) { return 82 + (id/8)*2, 208 + (id%8)*basicActionLength }))

var SensorModuleConfiguration = NewModelDefinition("SensorModuleConfiguration").
	WithField(NewMemoryStringField("device_type", MemoryTypeEEPROM, func(id int) (int, int) { return 239 + id, 0 }, 1)).
	WithField(NewMemoryAddressField("address", MemoryTypeEEPROM, func(id int) (int, int) { return 239 + id, 0 })).
	WithField(NewMemoryVersionField("firmware_version", MemoryTypeEEPROM, func(id int) (int, int) { return 239 + id, 4 }))

var SensorConfiguration = NewModelDefinition("SensorConfiguration").
	WithRelation(NewMemoryRelation("module", SensorModuleConfiguration, func(id int) int { return id / 8 })).
	WithField(NewMemoryWordField("temperature_groupaction_follow", MemoryTypeEEPROM, func(id int) (int, int) { return 239 + id/8, 8 + (id%8)*2 })).
	WithField(NewMemoryWordField("humidity_groupaction_follow", MemoryTypeEEPROM, func(id int) (int, int) { return 239 + id/8, 24 + (id%8)*2 })).
	WithField(NewMemoryWordField("brightness_groupaction_follow", MemoryTypeEEPROM, func(id int) (int, int) { return 239 + id/8, 40 + (id%8)*2 })).
	WithField(NewMemoryWordField("aqi_groupaction_follow", MemoryTypeEEPROM, func(id int) (int, int) { return 239 + id/8, 56 + (id%8)*2 })).
	WithComposite(NewCompositeFieldSpec("dali_mapping",
		NewMemoryByteField("dali_mapping", MemoryTypeEEPROM, func(id int) (int, int) { return 239 + id/8, 72 + id%8 }),
		NewCompositeNumberField("dali_output_id", 0, 8).WithLimits(63, 0),
		NewCompositeNumberField("dali_group_id", 0, 8).WithLimits(15, 64))).
	WithField(NewMemoryStringField("name", MemoryTypeEEPROM, func(id int) (int, int) { return 239 + id/8, 128 + (id%8)*16 }, 16))

var ExtraSensorConfiguration = NewModelDefinition("ExtraSensorConfiguration").
	WithField(NewMemoryWordField("groupaction_changed", MemoryTypeEEPROM, func(id int) (int, int) { return 471, id * 2 })).
	WithField(NewMemoryStringField("name", MemoryTypeEEPROM, func(id int) (int, int) { return 476 + id/16, (id % 16) * 16 }, 16))

var ValidationBitConfiguration = NewModelDefinition("ValidationBitConfiguration").
	WithField(NewMemoryWordField("groupaction_changed", MemoryTypeEEPROM, func(id int) (int, int) { return 480 + id/127, (id % 127) * 2 })).
	WithField(NewMemoryStringField("name", MemoryTypeEEPROM, func(id int) (int, int) { return 482 + id/16, (id % 16) * 16 }, 16))

var CanControlModuleConfiguration = NewModelDefinition("CanControlModuleConfiguration").
	WithField(NewMemoryStringField("device_type", MemoryTypeEEPROM, func(id int) (int, int) { return 255, id * 16 }, 1)).
	WithField(NewMemoryAddressField("address", MemoryTypeEEPROM, func(id int) (int, int) { return 255, id * 16 }))
