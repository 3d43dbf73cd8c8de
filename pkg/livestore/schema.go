package livestore

// Column sets of the fleet mirror tables. The first column is the row key
// used by FetchByFirstHeader and PushTable.
var (
	RobotInfoHeaders = []string{
		"name",
		"robot_location",
		"current_job",
		"ongoing_action",
		"previous_action",
		"cart_on_robot",
		"robot_charge",
		"error_count",
	}
	CartInfoHeaders = []string{
		"name",
		"cart_location",
		"robot_on_cart",
		"plugged",
		"error_count",
	}
)

// env_info row names
const (
	EnvRobots = "robots"
	EnvCarts  = "carts"
	EnvADS    = "ADS"
	EnvBCS    = "BCS"
	EnvBWS    = "BWS"
	EnvRBS    = "RBS"
)

// Fleet mirror table names
const (
	TableRobotInfo = "robot_info"
	TableCartInfo  = "cart_info"
)

// Battery table names
const (
	TableBatteryLive     = "CAN_MSG_RX_LIVE"
	TableBatteryFeedback = "TX_ChargeOrdersFeedback"
)

// Writable columns per battery table. UpdateBattery refuses anything else.
var batteryColumns = map[string]map[string]bool{
	TableBatteryLive: {
		"State_bat_mod":             true,
		"Mode_Bat_only":             true,
		"Flag_Modus":                true,
		"AC_Car_inlet_UNLOCKED":     true,
		"AC_Charger_inlet_UNLOCKED": true,
	},
	TableBatteryFeedback: {
		"Bat_State_actual": true,
	},
}

// Tables PushToLDB accepts, with their expected column counts
var pushTables = map[string]int{
	TableRobotInfo: len(RobotInfoHeaders),
	TableCartInfo:  len(CartInfoHeaders),
}

// orders_in matches the column layout of the booking server so rows can be
// copied between the primary and embedded backends verbatim.
const schema = `
CREATE TABLE IF NOT EXISTS robot_info (
	name TEXT PRIMARY KEY,
	robot_location TEXT,
	current_job TEXT,
	ongoing_action TEXT,
	previous_action TEXT,
	cart_on_robot TEXT,
	robot_charge TEXT,
	error_count TEXT
);

CREATE TABLE IF NOT EXISTS cart_info (
	name TEXT PRIMARY KEY,
	cart_location TEXT,
	robot_on_cart TEXT,
	plugged TEXT,
	error_count TEXT
);

CREATE TABLE IF NOT EXISTS env_info (
	name TEXT PRIMARY KEY,
	value TEXT,
	count INTEGER
);

CREATE TABLE IF NOT EXISTS orders_in (
	charging_session_id TEXT,
	app_id TEXT,
	customer_id TEXT,
	VIN TEXT,
	bev_chargePower_kW_AC_I TEXT,
	bev_chargePower_kW_AC_II TEXT,
	bev_charge_Port_AC TEXT,
	bev_fastcharge_power_DC_I TEXT,
	bev_fastcharge_power_DC_II TEXT,
	bev_fastcharge_port TEXT,
	bev_Port_Location TEXT,
	drop_location TEXT,
	BEV_slot_planned TEXT,
	plugintime_calculated TEXT,
	target_soc_pct TEXT,
	current_BEV_slot_recond TEXT,
	drop_date_time TEXT,
	pick_up_date_time TEXT,
	arrival_timestamp TEXT,
	booking_date_time_dev TEXT,
	charging_session_status TEXT,
	last_change TEXT,
	immediate_charge TEXT,
	Actual_Drop_SOC TEXT,
	Actual_Target_SOC TEXT,
	Actual_plugintime_calculated TEXT,
	Actual_BEV_Drop_Time TEXT,
	Actual_BEV_Pickup_Time TEXT
);

CREATE TABLE IF NOT EXISTS CAN_MSG_RX_LIVE (
	Battry_ID TEXT PRIMARY KEY,
	State_bat_mod TEXT,
	Mode_Bat_only TEXT,
	Flag_Modus TEXT,
	AC_Car_inlet_UNLOCKED TEXT,
	AC_Charger_inlet_UNLOCKED TEXT,
	last_change TEXT
);

CREATE TABLE IF NOT EXISTS TX_ChargeOrdersFeedback (
	Battry_ID TEXT PRIMARY KEY,
	Bat_State_actual TEXT,
	last_change TEXT
);
`

const orderColumns = 28
