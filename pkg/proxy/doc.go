/*
Package proxy implements a REST API for controlling the vehicles of one Kia Owners account.

The proxy signs in with credentials supplied at startup; HTTP clients never see them. Endpoints:

	GET  /api/1/vehicles
	GET  /api/1/vehicles/{vin}/vehicle_data
	POST /api/1/vehicles/{vin}/command/{command}
	GET  /api/1/vehicles/{vin}/transactions/{xid}
	GET  /metrics

Supported commands are door_lock, door_unlock, auto_conditioning_start and
auto_conditioning_stop. auto_conditioning_start accepts an optional JSON body such as
{"temperature": 70}; numbers are mapped onto the range the portal accepts and strings are sent
as-is.

Commands wait for the vehicle to finish unless the request includes ?wait=false. A command whose
outcome could not be observed within the polling budget returns 202 Accepted with "result": false;
the command may still have succeeded.
*/
package proxy
