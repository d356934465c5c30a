package schema

type column struct {
	name string
	role Role
}

func tag(name string) column   { return column{name: name, role: Tag} }
func field(name string) column { return column{name: name, role: Field} }
func omit(name string) column  { return column{name: name, role: Omit} }

// SHOW CLIENTS and SHOW SERVERS
var socketColumns = []column{
	tag("type"),
	tag("user"),
	tag("database"),
	tag("replication"),
	tag("state"),
	tag("addr"),
	field("port"),
	tag("local_addr"),
	field("local_port"),
	field("connect_time"),
	field("request_time"),
	field("wait"),
	field("wait_us"),
	field("close_needed"),
	omit("ptr"),
	omit("link"),
	field("remote_pid"),
	field("tls"),
	tag("application_name"),
	field("prepared_statements"),
	field("id"),
	tag("force_user"),
}

// extra buffer columns of SHOW SOCKETS and SHOW ACTIVE_SOCKETS
var bufferColumns = []column{
	field("recv_pos"),
	field("pkt_pos"),
	field("pkt_remain"),
	field("send_pos"),
	field("send_remain"),
	field("pkt_avail"),
	field("send_avail"),
}

var statsColumns = []column{
	tag("database"),
	field("total_server_assignment_count"),
	field("total_xact_count"),
	field("total_query_count"),
	field("total_received"),
	field("total_sent"),
	field("total_xact_time"),
	field("total_query_time"),
	field("total_wait_time"),
	field("total_client_parse_count"),
	field("total_server_parse_count"),
	field("total_bind_count"),
	field("total_requests"),
	field("avg_server_assignment_count"),
	field("avg_xact_count"),
	field("avg_query_count"),
	field("avg_recv"),
	field("avg_sent"),
	field("avg_xact_time"),
	field("avg_query_time"),
	field("avg_wait_time"),
	field("avg_client_parse_count"),
	field("avg_server_parse_count"),
	field("avg_bind_count"),
	field("avg_req"),
}

// SHOW STATS_TOTALS and SHOW STATS_AVERAGES
var statsSplitColumns = []column{
	tag("database"),
	field("server_assignment_count"),
	field("xact_count"),
	field("query_count"),
	field("bytes_received"),
	field("bytes_sent"),
	field("xact_time"),
	field("query_time"),
	field("wait_time"),
	field("client_parse_count"),
	field("server_parse_count"),
	field("bind_count"),
	field("request_count"),
}

var queryColumns = []struct {
	queries []QueryType
	columns [][]column
}{
	{queries: []QueryType{"pools"}, columns: [][]column{{
		tag("database"),
		tag("user"),
		field("cl_active"),
		field("cl_waiting"),
		field("cl_active_cancel_req"),
		field("cl_waiting_cancel_req"),
		field("cl_cancel_req"),
		field("sv_active"),
		field("sv_active_cancel"),
		field("sv_being_canceled"),
		field("sv_idle"),
		field("sv_used"),
		field("sv_tested"),
		field("sv_login"),
		field("maxwait"),
		field("maxwait_us"),
		tag("pool_mode"),
		tag("load_balance_hosts"),
	}}},
	{queries: []QueryType{"clients", "servers"}, columns: [][]column{socketColumns}},
	{queries: []QueryType{"active_sockets", "sockets"}, columns: [][]column{socketColumns, bufferColumns}},
	{queries: []QueryType{"databases"}, columns: [][]column{{
		tag("name"),
		tag("host"),
		field("port"),
		tag("database"),
		tag("force_user"),
		field("pool_size"),
		field("min_pool_size"),
		field("reserve_pool"),
		field("reserve_pool_size"),
		field("server_lifetime"),
		tag("pool_mode"),
		tag("load_balance_hosts"),
		field("max_connections"),
		field("current_connections"),
		field("max_client_connections"),
		field("current_client_connections"),
		field("paused"),
		field("disabled"),
	}}},
	{queries: []QueryType{"stats"}, columns: [][]column{statsColumns}},
	{queries: []QueryType{"stats_totals", "stats_averages"}, columns: [][]column{statsSplitColumns}},
	{queries: []QueryType{"mem"}, columns: [][]column{{
		tag("name"),
		field("size"),
		field("used"),
		field("free"),
		field("memtotal"),
	}}},
	{queries: []QueryType{"fds"}, columns: [][]column{{
		field("fd"),
		tag("task"),
		tag("user"),
		tag("database"),
		tag("addr"),
		field("port"),
		field("cancel"),
		omit("link"),
		tag("client_encoding"),
		tag("std_strings"),
		tag("datestyle"),
		tag("timezone"),
		omit("password"),
		omit("scram_client_key"),
		omit("scram_server_key"),
	}}},
	{queries: []QueryType{"lists"}, columns: [][]column{{
		tag("list"),
		field("items"),
	}}},
	{queries: []QueryType{"totals"}, columns: [][]column{{
		tag("name"),
		field("value"),
	}}},
	{queries: []QueryType{"config"}, columns: [][]column{{
		tag("key"),
		field("value"),
		field("default"),
		field("changeable"),
	}}},
	{queries: []QueryType{"users"}, columns: [][]column{{
		tag("name"),
		field("pool_size"),
		field("reserve_pool_size"),
		tag("pool_mode"),
		field("max_user_connections"),
		field("current_connections"),
		field("max_user_client_connections"),
		field("current_client_connections"),
	}}},
	{queries: []QueryType{"peers"}, columns: [][]column{{
		tag("peer_id"),
		tag("host"),
		field("port"),
		field("pool_size"),
	}}},
	{queries: []QueryType{"peer_pools"}, columns: [][]column{{
		tag("peer_id"),
		field("cl_active_cancel_req"),
		field("cl_waiting_cancel_req"),
		field("sv_active_cancel"),
		field("sv_login"),
	}}},
	{queries: []QueryType{"dns_hosts"}, columns: [][]column{{
		tag("hostname"),
		field("ttl"),
		field("addrs"),
	}}},
	{queries: []QueryType{"dns_zones"}, columns: [][]column{{
		tag("zonename"),
		field("serial"),
		field("count"),
	}}},
	{queries: []QueryType{"state"}, columns: [][]column{{
		tag("key"),
		field("value"),
	}}},
	{queries: []QueryType{"version"}, columns: [][]column{{
		field("version"),
	}}},
}

func builtin() []Entry {
	var entries []Entry
	for _, qc := range queryColumns {
		for _, q := range qc.queries {
			for _, cols := range qc.columns {
				for _, c := range cols {
					entries = append(entries, Entry{Query: q, Column: c.name, Role: c.role})
				}
			}
		}
	}
	return entries
}
